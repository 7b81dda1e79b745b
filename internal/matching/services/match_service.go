package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/architect/peer-matching/internal/common/errors"
	"github.com/architect/peer-matching/internal/matching/models"
	"github.com/architect/peer-matching/internal/matching/repository"
	"github.com/architect/peer-matching/pkg/logger"
	"go.uber.org/zap"
)

// CreateMatches runs the full pipeline for one (subject, chapter): candidate
// pool, deferred acceptance, persistence of the resulting pairings as pending
// matches. Idempotent with respect to already-active pairs: re-running on an
// unchanged pool creates zero additional matches, and a duplicate insert
// racing past the check is absorbed by the unique index on active pairs.
func CreateMatches(subject, chapter string, cfg Config) (*models.MatchingResponse, error) {
	records, err := repository.ListLatestByChapter(subject, chapter)
	if err != nil {
		return nil, err
	}

	activeStudents, err := repository.ActiveStudentIDsForChapter(subject, chapter)
	if err != nil {
		return nil, err
	}

	pool := BuildPool(subject, chapter, records, activeStudents, cfg)
	pairings := MatchPool(pool, cfg)

	// Pairs already holding an active match are skipped, not re-created.
	activeMatches, err := repository.GetActiveMatchesForChapter(subject, chapter)
	if err != nil {
		return nil, err
	}
	activePairs := make(map[[2]uint]bool, len(activeMatches))
	for _, m := range activeMatches {
		activePairs[[2]uint{m.TutorID, m.LearnerID}] = true
	}

	created := make([]*models.Match, 0, len(pairings))
	for _, pairing := range pairings {
		if activePairs[[2]uint{pairing.Tutor.StudentID, pairing.Learner.StudentID}] {
			continue
		}

		active := true
		match := &models.Match{
			TutorID:            pairing.Tutor.StudentID,
			LearnerID:          pairing.Learner.StudentID,
			Subject:            subject,
			Chapter:            chapter,
			TutorScore:         pairing.Tutor.Score,
			LearnerScore:       pairing.Learner.Score,
			CompatibilityScore: pairing.Compatibility,
			TutorRank:          pairing.TutorRank,
			LearnerRank:        pairing.LearnerRank,
			Status:             models.MatchPending,
			Active:             &active,
			MatchedAt:          time.Now().UTC(),
		}

		if err := repository.CreateMatch(match); err != nil {
			if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.CodeConflict {
				// A concurrent run created this pair first; not an error.
				continue
			}
			return nil, err
		}
		created = append(created, match)
	}

	logger.Get().Info("matching run completed",
		zap.String("subject", subject),
		zap.String("chapter", chapter),
		zap.Int("tutors", len(pool.Tutors)),
		zap.Int("learners", len(pool.Learners)),
		zap.Int("matches_created", len(created)),
	)

	return &models.MatchingResponse{
		Success:        true,
		Message:        fmt.Sprintf("Created %d matches for %s", len(created), chapter),
		MatchesCreated: len(created),
		Matches:        created,
	}, nil
}

// legalTransitions is the match state machine: pending may be accepted or
// rejected, accepted may be completed. rejected and completed are terminal.
var legalTransitions = map[string]map[string]bool{
	models.MatchPending:  {models.MatchAccepted: true, models.MatchRejected: true},
	models.MatchAccepted: {models.MatchCompleted: true},
}

// UpdateMatchStatus applies a status transition requested by a participant.
// Only the tutor or learner on the match may transition it; anything outside
// the state machine fails with InvalidTransition.
func UpdateMatchStatus(matchID, studentID uint, newStatus string) (*models.Match, error) {
	match, err := repository.GetMatchByID(matchID)
	if err != nil {
		return nil, err
	}

	if match.TutorID != studentID && match.LearnerID != studentID {
		return nil, errors.Forbidden("only a participant may update this match")
	}

	if !legalTransitions[match.Status][newStatus] {
		return nil, errors.InvalidTransition(match.Status, newStatus)
	}

	now := time.Now().UTC()
	match.Status = newStatus
	switch newStatus {
	case models.MatchAccepted:
		match.AcceptedAt = &now
	case models.MatchCompleted:
		match.CompletedAt = &now
	}
	if models.IsTerminal(newStatus) {
		match.Active = nil // frees the unique slot for future re-matching
	}

	if err := repository.SaveMatch(match); err != nil {
		return nil, err
	}

	return match, nil
}

// GetStudentMatches returns a student's matches split by role.
func GetStudentMatches(studentID uint) (*models.StudentMatchesResponse, error) {
	tutoring, err := repository.GetMatchesByStudent(studentID, "tutor")
	if err != nil {
		return nil, err
	}

	learning, err := repository.GetMatchesByStudent(studentID, "learner")
	if err != nil {
		return nil, err
	}

	return &models.StudentMatchesResponse{
		TutoringMatches: tutoring,
		LearningMatches: learning,
		TotalMatches:    len(tutoring) + len(learning),
	}, nil
}

// GetMatchingStats counts potential tutors and learners over the current
// performance records, optionally narrowed by subject and chapter.
func GetMatchingStats(subject, chapter string, cfg Config) (*models.MatchingStatsResponse, error) {
	records, err := repository.ListLatest(subject, chapter)
	if err != nil {
		return nil, err
	}

	tutors := make(map[uint]bool)
	learners := make(map[uint]bool)
	chapters := make(map[string]bool)
	subjects := make(map[string]bool)

	for _, record := range records {
		subjects[record.Subject] = true
		chapters[record.Chapter] = true

		if record.Score >= cfg.TutorThreshold {
			tutors[record.StudentID] = true
		}
		if record.Score <= cfg.LearnerThreshold {
			learners[record.StudentID] = true
		}
	}

	return &models.MatchingStatsResponse{
		TotalPotentialTutors:   len(tutors),
		TotalPotentialLearners: len(learners),
		ChaptersAvailable:      sortedKeys(chapters),
		SubjectsAvailable:      sortedKeys(subjects),
	}, nil
}

// GetAvailableChapters lists the chapters with performance data, grouped by
// subject, with the number of distinct students per subject.
func GetAvailableChapters(subject string) ([]models.ChapterListResponse, error) {
	records, err := repository.ListLatest(subject, "")
	if err != nil {
		return nil, err
	}

	chaptersBySubject := make(map[string]map[string]bool)
	studentsBySubject := make(map[string]map[uint]bool)
	for _, record := range records {
		if chaptersBySubject[record.Subject] == nil {
			chaptersBySubject[record.Subject] = make(map[string]bool)
			studentsBySubject[record.Subject] = make(map[uint]bool)
		}
		chaptersBySubject[record.Subject][record.Chapter] = true
		studentsBySubject[record.Subject][record.StudentID] = true
	}

	response := make([]models.ChapterListResponse, 0, len(chaptersBySubject))
	for _, subj := range sortedKeys(chaptersBySubject) {
		response = append(response, models.ChapterListResponse{
			Subject:       subj,
			Chapters:      sortedKeys(chaptersBySubject[subj]),
			TotalStudents: len(studentsBySubject[subj]),
		})
	}

	return response, nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
