package services

import (
	"testing"
	"time"

	"github.com/architect/peer-matching/internal/common/database"
	"github.com/architect/peer-matching/internal/common/errors"
	"github.com/architect/peer-matching/internal/matching/models"
	"github.com/architect/peer-matching/internal/matching/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB points the shared database handle at a fresh in-memory SQLite
// instance. Single connection, so every query sees the same database.
func setupTestDB(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.PerformanceRecord{},
		&models.Match{},
		&models.HelpRequest{},
		&models.HelpOffer{},
	))

	database.DB = db
}

func seedPerformance(t *testing.T, studentID uint, subject, chapter string, score models.Score10) *models.PerformanceRecord {
	t.Helper()

	rec := &models.PerformanceRecord{
		StudentID:          studentID,
		Subject:            subject,
		Chapter:            chapter,
		Score:              score,
		AccuracyPercentage: models.Percent(float64(score) * 10),
		WeaknessLevel:      models.WeaknessModerate,
		TotalQuestions:     10,
		CorrectAnswers:     int(score),
		LastAssessedAt:     time.Now().UTC(),
	}
	require.NoError(t, repository.CreatePerformance(rec))
	return rec
}

func requireAppCode(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func seedWorkedChapter(t *testing.T) {
	t.Helper()
	seedPerformance(t, 1, "math", "fractions", 9)
	seedPerformance(t, 2, "math", "fractions", 8)
	seedPerformance(t, 11, "math", "fractions", 2)
	seedPerformance(t, 12, "math", "fractions", 4)
	seedPerformance(t, 13, "math", "fractions", 5)
}

func TestCreateMatchesPersistsPendingMatches(t *testing.T) {
	setupTestDB(t)
	seedWorkedChapter(t)

	resp, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Equal(t, 2, resp.MatchesCreated)

	best := resp.Matches[0]
	assert.Equal(t, uint(1), best.TutorID)
	assert.Equal(t, uint(12), best.LearnerID)
	assert.Equal(t, models.MatchPending, best.Status)
	assert.InDelta(t, 71.5, float64(best.CompatibilityScore), 1e-9)
	assert.Equal(t, models.Score10(9), best.TutorScore)
	assert.Equal(t, models.Score10(4), best.LearnerScore)
	require.NotNil(t, best.Active)
	assert.True(t, *best.Active)

	second := resp.Matches[1]
	assert.Equal(t, uint(2), second.TutorID)
	assert.Equal(t, uint(11), second.LearnerID)
}

func TestCreateMatchesIdempotent(t *testing.T) {
	setupTestDB(t)
	seedWorkedChapter(t)

	first, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 2, first.MatchesCreated)

	// The matched students now hold active matches, so a re-run finds an
	// empty effective pool and creates nothing.
	again, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, again.MatchesCreated)
}

// A conflicting row committed by a concurrent run between this run's reads
// and its insert hits the active-pair unique index instead of the pool
// exclusion. The run absorbs the rejection and reports zero new matches
// rather than failing. The racing row is planted directly, holding the
// active slot while staying invisible to the status-filtered reads.
func TestCreateMatchesAbsorbsConcurrentDuplicate(t *testing.T) {
	setupTestDB(t)
	seedPerformance(t, 1, "math", "fractions", 9)
	seedPerformance(t, 11, "math", "fractions", 3)

	active := true
	require.NoError(t, database.DB.Create(&models.Match{
		TutorID:   1,
		LearnerID: 11,
		Subject:   "math",
		Chapter:   "fractions",
		Status:    models.MatchCompleted,
		Active:    &active,
		MatchedAt: time.Now().UTC(),
	}).Error)

	resp, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, resp.MatchesCreated)

	var count int64
	require.NoError(t, database.DB.Model(&models.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateMatchesNoLearners(t *testing.T) {
	setupTestDB(t)
	seedPerformance(t, 1, "math", "fractions", 9)
	seedPerformance(t, 2, "math", "fractions", 8)

	resp, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.MatchesCreated)
}

// A rejected match frees both students and the pair's unique slot, so the
// next run may pair them again.
func TestCreateMatchesAfterRejection(t *testing.T) {
	setupTestDB(t)
	seedPerformance(t, 1, "math", "fractions", 9)
	seedPerformance(t, 11, "math", "fractions", 4)

	first, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, first.MatchesCreated)

	_, err = UpdateMatchStatus(first.Matches[0].ID, 11, models.MatchRejected)
	require.NoError(t, err)

	again, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, again.MatchesCreated)
}

func TestUpdateMatchStatusTransitions(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		to        string
		wantError bool
	}{
		{"pending to accepted", models.MatchPending, models.MatchAccepted, false},
		{"pending to rejected", models.MatchPending, models.MatchRejected, false},
		{"accepted to completed", models.MatchAccepted, models.MatchCompleted, false},
		{"pending to completed", models.MatchPending, models.MatchCompleted, true},
		{"accepted to rejected", models.MatchAccepted, models.MatchRejected, true},
		{"rejected is terminal", models.MatchRejected, models.MatchAccepted, true},
		{"completed is terminal", models.MatchCompleted, models.MatchAccepted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestDB(t)

			match := &models.Match{
				TutorID:   1,
				LearnerID: 11,
				Subject:   "math",
				Chapter:   "fractions",
				Status:    tt.from,
				MatchedAt: time.Now().UTC(),
			}
			if !models.IsTerminal(tt.from) {
				active := true
				match.Active = &active
			}
			require.NoError(t, repository.CreateMatch(match))

			updated, err := UpdateMatchStatus(match.ID, 1, tt.to)
			if tt.wantError {
				requireAppCode(t, err, errors.CodeInvalidTransition)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, updated.Status)
			switch tt.to {
			case models.MatchAccepted:
				assert.NotNil(t, updated.AcceptedAt)
			case models.MatchCompleted:
				assert.NotNil(t, updated.CompletedAt)
			}
			if models.IsTerminal(tt.to) {
				assert.Nil(t, updated.Active)
			}
		})
	}
}

func TestUpdateMatchStatusForbiddenForOutsiders(t *testing.T) {
	setupTestDB(t)

	active := true
	match := &models.Match{
		TutorID:   1,
		LearnerID: 11,
		Subject:   "math",
		Chapter:   "fractions",
		Status:    models.MatchPending,
		Active:    &active,
		MatchedAt: time.Now().UTC(),
	}
	require.NoError(t, repository.CreateMatch(match))

	_, err := UpdateMatchStatus(match.ID, 99, models.MatchAccepted)
	requireAppCode(t, err, errors.CodeForbidden)
}

func TestUpdateMatchStatusNotFound(t *testing.T) {
	setupTestDB(t)

	_, err := UpdateMatchStatus(12345, 1, models.MatchAccepted)
	requireAppCode(t, err, errors.CodeNotFound)
}

func TestGetStudentMatchesSplitsByRole(t *testing.T) {
	setupTestDB(t)
	seedWorkedChapter(t)
	seedPerformance(t, 1, "math", "decimals", 3) // student 1 struggles elsewhere
	seedPerformance(t, 5, "math", "decimals", 9)

	_, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)
	_, err = CreateMatches("math", "decimals", DefaultConfig())
	require.NoError(t, err)

	resp, err := GetStudentMatches(1)
	require.NoError(t, err)

	require.Len(t, resp.TutoringMatches, 1)
	require.Len(t, resp.LearningMatches, 1)
	assert.Equal(t, 2, resp.TotalMatches)
	assert.Equal(t, "fractions", resp.TutoringMatches[0].Chapter)
	assert.Equal(t, "decimals", resp.LearningMatches[0].Chapter)
}

func TestGetMatchingStats(t *testing.T) {
	setupTestDB(t)
	seedWorkedChapter(t)
	seedPerformance(t, 20, "math", "fractions", 6) // mid band, neither pool

	stats, err := GetMatchingStats("math", "", DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalPotentialTutors)
	assert.Equal(t, 3, stats.TotalPotentialLearners)
	assert.Equal(t, []string{"fractions"}, stats.ChaptersAvailable)
	assert.Equal(t, []string{"math"}, stats.SubjectsAvailable)
}

func TestGetAvailableChapters(t *testing.T) {
	setupTestDB(t)
	seedPerformance(t, 1, "math", "fractions", 7)
	seedPerformance(t, 1, "math", "decimals", 5)
	seedPerformance(t, 2, "math", "fractions", 4)
	seedPerformance(t, 3, "science", "plants", 8)

	chapters, err := GetAvailableChapters("")
	require.NoError(t, err)

	require.Len(t, chapters, 2)
	assert.Equal(t, "math", chapters[0].Subject)
	assert.Equal(t, []string{"decimals", "fractions"}, chapters[0].Chapters)
	assert.Equal(t, 2, chapters[0].TotalStudents)
	assert.Equal(t, "science", chapters[1].Subject)
	assert.Equal(t, 1, chapters[1].TotalStudents)
}

// The latest record per student drives matching: a student who improves past
// the tutor threshold switches sides.
func TestCreateMatchesUsesLatestRecord(t *testing.T) {
	setupTestDB(t)
	seedPerformance(t, 1, "math", "fractions", 3)
	seedPerformance(t, 11, "math", "fractions", 2)

	// No tutors yet
	resp, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 0, resp.MatchesCreated)

	// Student 1 re-assessed well above the tutor threshold
	improved := seedPerformance(t, 1, "math", "fractions", 9)
	improved.LastAssessedAt = time.Now().UTC().Add(time.Hour)
	require.NoError(t, database.DB.Save(improved).Error)

	resp, err = CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, resp.MatchesCreated)
	assert.Equal(t, uint(1), resp.Matches[0].TutorID)
	assert.Equal(t, uint(11), resp.Matches[0].LearnerID)
}

func TestRecordPerformanceValidation(t *testing.T) {
	setupTestDB(t)

	tests := []struct {
		name     string
		req      models.RecordPerformanceRequest
		wantCode string
	}{
		{
			name: "more correct answers than questions",
			req: models.RecordPerformanceRequest{
				StudentID: 1, Subject: "math", Chapter: "fractions",
				Score: 5, WeaknessLevel: models.WeaknessModerate,
				TotalQuestions: 10, CorrectAnswers: 12,
			},
			wantCode: errors.CodeBadRequest,
		},
		{
			name: "score off the 0-10 scale",
			req: models.RecordPerformanceRequest{
				StudentID: 1, Subject: "math", Chapter: "fractions",
				Score: 11, WeaknessLevel: models.WeaknessNone,
				TotalQuestions: 10, CorrectAnswers: 10,
			},
			wantCode: errors.CodeValidation,
		},
		{
			name: "accuracy above 100",
			req: models.RecordPerformanceRequest{
				StudentID: 1, Subject: "math", Chapter: "fractions",
				Score: 5, AccuracyPercentage: 120, WeaknessLevel: models.WeaknessMild,
				TotalQuestions: 10, CorrectAnswers: 5,
			},
			wantCode: errors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecordPerformance(tt.req)
			requireAppCode(t, err, tt.wantCode)
		})
	}
}

func TestRecordPerformanceAppends(t *testing.T) {
	setupTestDB(t)

	first, err := RecordPerformance(models.RecordPerformanceRequest{
		StudentID:      1,
		Subject:        "math",
		Chapter:        "fractions",
		Score:          4,
		WeaknessLevel:  models.WeaknessModerate,
		TotalQuestions: 10,
		CorrectAnswers: 4,
	})
	require.NoError(t, err)

	second, err := RecordPerformance(models.RecordPerformanceRequest{
		StudentID:      1,
		Subject:        "math",
		Chapter:        "fractions",
		Score:          8,
		WeaknessLevel:  models.WeaknessNone,
		TotalQuestions: 10,
		CorrectAnswers: 8,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Both rows survive; the newer one is the current record
	var count int64
	require.NoError(t, database.DB.Model(&models.PerformanceRecord{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	latest, err := repository.GetLatestPerformance(1, "math", "fractions")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
}
