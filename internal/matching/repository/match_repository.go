package repository

import (
	stderrors "errors"
	"strings"

	"github.com/architect/peer-matching/internal/common/database"
	"github.com/architect/peer-matching/internal/common/errors"
	"github.com/architect/peer-matching/internal/matching/models"
	"gorm.io/gorm"
)

// CreateMatch inserts a new match row. A unique-index violation on the active
// pair comes back as a CONFLICT error so the caller can treat a concurrent
// duplicate insert as already-done.
func CreateMatch(match *models.Match) error {
	return CreateMatchTx(database.DB, match)
}

// CreateMatchTx is CreateMatch within the caller's transaction.
func CreateMatchTx(db *gorm.DB, match *models.Match) error {
	result := db.Create(match)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return errors.Conflict("an active match for this pair already exists")
		}
		return errors.Internal("failed to create match", result.Error.Error())
	}
	return nil
}

// GetMatchByID retrieves a single match
func GetMatchByID(id uint) (*models.Match, error) {
	var match models.Match
	result := database.DB.First(&match, id)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("match")
		}
		return nil, errors.Internal("failed to fetch match", result.Error.Error())
	}

	return &match, nil
}

// SaveMatch persists status-transition changes
func SaveMatch(match *models.Match) error {
	result := database.DB.Save(match)
	if result.Error != nil {
		return errors.Internal("failed to update match", result.Error.Error())
	}
	return nil
}

// GetActiveMatchesForChapter retrieves pending and accepted matches for one
// (subject, chapter).
func GetActiveMatchesForChapter(subject, chapter string) ([]*models.Match, error) {
	var matches []*models.Match

	result := database.DB.
		Where("subject = ? AND chapter = ? AND status IN ?",
			subject, chapter, []string{models.MatchPending, models.MatchAccepted}).
		Find(&matches)

	if result.Error != nil {
		return nil, errors.Internal("failed to fetch active matches", result.Error.Error())
	}

	return matches, nil
}

// ActiveStudentIDsForChapter returns the set of students holding a pending or
// accepted match for the given (subject, chapter). Used for pool exclusion.
func ActiveStudentIDsForChapter(subject, chapter string) (map[uint]bool, error) {
	matches, err := GetActiveMatchesForChapter(subject, chapter)
	if err != nil {
		return nil, err
	}

	active := make(map[uint]bool, len(matches)*2)
	for _, match := range matches {
		active[match.TutorID] = true
		active[match.LearnerID] = true
	}

	return active, nil
}

// GetMatchesByStudent retrieves matches where the student participates.
// Role is "tutor", "learner", or "" for both.
func GetMatchesByStudent(studentID uint, role string) ([]*models.Match, error) {
	var matches []*models.Match

	query := database.DB.Order("matched_at DESC, id DESC")
	switch role {
	case "tutor":
		query = query.Where("tutor_id = ?", studentID)
	case "learner":
		query = query.Where("learner_id = ?", studentID)
	default:
		query = query.Where("tutor_id = ? OR learner_id = ?", studentID, studentID)
	}

	if result := query.Find(&matches); result.Error != nil {
		return nil, errors.Internal("failed to fetch student matches", result.Error.Error())
	}

	return matches, nil
}

// isDuplicateKey recognizes unique-constraint violations across the sqlite
// and postgres drivers.
func isDuplicateKey(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
