package repository

import (
	"github.com/architect/peer-matching/internal/common/database"
	"github.com/architect/peer-matching/internal/common/errors"
	"github.com/architect/peer-matching/internal/matching/models"
	"gorm.io/gorm"
)

// CreatePerformance appends a new performance record. Records are never
// updated in place; re-evaluation inserts a fresh row.
func CreatePerformance(record *models.PerformanceRecord) error {
	result := database.DB.Create(record)
	if result.Error != nil {
		return errors.Internal("failed to create performance record", result.Error.Error())
	}
	return nil
}

// GetPerformanceByID retrieves a single performance record
func GetPerformanceByID(id uint) (*models.PerformanceRecord, error) {
	var record models.PerformanceRecord
	result := database.DB.First(&record, id)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("performance record")
		}
		return nil, errors.Internal("failed to fetch performance record", result.Error.Error())
	}

	return &record, nil
}

// GetLatestPerformance retrieves the current (most recent) record for one
// (student, subject, chapter), or nil when the student has none.
func GetLatestPerformance(studentID uint, subject, chapter string) (*models.PerformanceRecord, error) {
	var record models.PerformanceRecord
	result := database.DB.
		Where("student_id = ? AND subject = ? AND chapter = ?", studentID, subject, chapter).
		Order("last_assessed_at DESC, id DESC").
		First(&record)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil // No record yet
		}
		return nil, errors.Internal("failed to fetch performance record", result.Error.Error())
	}

	return &record, nil
}

// ListLatestByChapter retrieves the current record of every student assessed
// on the given (subject, chapter). Rows come back ordered newest-first and
// are deduplicated to one per student.
func ListLatestByChapter(subject, chapter string) ([]*models.PerformanceRecord, error) {
	var records []*models.PerformanceRecord

	result := database.DB.
		Where("subject = ? AND chapter = ?", subject, chapter).
		Order("last_assessed_at DESC, id DESC").
		Find(&records)

	if result.Error != nil {
		return nil, errors.Internal("failed to fetch chapter performance", result.Error.Error())
	}

	return latestPerStudent(records), nil
}

// ListLatest retrieves current records with optional subject/chapter filters,
// one per (student, subject, chapter). Used by the stats endpoint.
func ListLatest(subject, chapter string) ([]*models.PerformanceRecord, error) {
	var records []*models.PerformanceRecord

	query := database.DB.Order("last_assessed_at DESC, id DESC")
	if subject != "" {
		query = query.Where("subject = ?", subject)
	}
	if chapter != "" {
		query = query.Where("chapter = ?", chapter)
	}

	if result := query.Find(&records); result.Error != nil {
		return nil, errors.Internal("failed to fetch performance records", result.Error.Error())
	}

	return latestPerKey(records), nil
}

// ListStudentPerformance retrieves a student's current record per chapter,
// optionally filtered by subject.
func ListStudentPerformance(studentID uint, subject string) ([]*models.PerformanceRecord, error) {
	var records []*models.PerformanceRecord

	query := database.DB.
		Where("student_id = ?", studentID).
		Order("last_assessed_at DESC, id DESC")
	if subject != "" {
		query = query.Where("subject = ?", subject)
	}

	if result := query.Find(&records); result.Error != nil {
		return nil, errors.Internal("failed to fetch student performance", result.Error.Error())
	}

	return latestPerKey(records), nil
}

// latestPerStudent keeps the first (newest) row per student.
// Input must already be ordered newest-first.
func latestPerStudent(records []*models.PerformanceRecord) []*models.PerformanceRecord {
	seen := make(map[uint]bool, len(records))
	latest := make([]*models.PerformanceRecord, 0, len(records))

	for _, record := range records {
		if seen[record.StudentID] {
			continue
		}
		seen[record.StudentID] = true
		latest = append(latest, record)
	}

	return latest
}

type perfKey struct {
	studentID uint
	subject   string
	chapter   string
}

// latestPerKey keeps the first (newest) row per (student, subject, chapter).
// Input must already be ordered newest-first.
func latestPerKey(records []*models.PerformanceRecord) []*models.PerformanceRecord {
	seen := make(map[perfKey]bool, len(records))
	latest := make([]*models.PerformanceRecord, 0, len(records))

	for _, record := range records {
		key := perfKey{record.StudentID, record.Subject, record.Chapter}
		if seen[key] {
			continue
		}
		seen[key] = true
		latest = append(latest, record)
	}

	return latest
}
