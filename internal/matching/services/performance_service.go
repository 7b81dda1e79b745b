package services

import (
	"time"

	"github.com/architect/peer-matching/internal/common/errors"
	"github.com/architect/peer-matching/internal/common/validation"
	"github.com/architect/peer-matching/internal/matching/models"
	"github.com/architect/peer-matching/internal/matching/repository"
)

// RecordPerformance appends a chapter evaluation result. Called by the
// assessment evaluator after grading; an existing record for the same
// (student, subject, chapter) is never overwritten, the new row simply
// becomes the current one.
func RecordPerformance(req models.RecordPerformanceRequest) (*models.PerformanceRecord, error) {
	if err := validation.ValidateFloatRange(req.Score, 0, 10); err != nil {
		return nil, errors.Validation("invalid score", err.Error())
	}
	if err := validation.ValidateFloatRange(req.AccuracyPercentage, 0, 100); err != nil {
		return nil, errors.Validation("invalid accuracy percentage", err.Error())
	}
	if req.CorrectAnswers > req.TotalQuestions {
		return nil, errors.BadRequest("correct answers cannot exceed total questions")
	}

	record := &models.PerformanceRecord{
		StudentID:          req.StudentID,
		Subject:            req.Subject,
		Chapter:            req.Chapter,
		Score:              models.Score10(req.Score),
		AccuracyPercentage: models.Percent(req.AccuracyPercentage),
		WeaknessLevel:      req.WeaknessLevel,
		TotalQuestions:     req.TotalQuestions,
		CorrectAnswers:     req.CorrectAnswers,
		LastAssessedAt:     time.Now().UTC(),
	}

	if err := repository.CreatePerformance(record); err != nil {
		return nil, err
	}

	return record, nil
}

// GetStudentPerformance returns a student's current record per chapter.
func GetStudentPerformance(studentID uint, subject string) ([]*models.PerformanceRecord, error) {
	return repository.ListStudentPerformance(studentID, subject)
}
