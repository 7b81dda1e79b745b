package models

import (
	"time"
)

// Score10 is a chapter score on the 0-10 assessment scale (half points allowed).
// Kept distinct from Percent so the two scales cannot be mixed up.
type Score10 float64

// Percent is a value on the 0-100 scale (accuracy, compatibility).
type Percent float64

// Match lifecycle states
const (
	MatchPending   = "pending"
	MatchAccepted  = "accepted"
	MatchRejected  = "rejected"
	MatchCompleted = "completed"
)

// Weakness levels assigned by the assessment evaluator
const (
	WeaknessNone     = "none"
	WeaknessMild     = "mild"
	WeaknessModerate = "moderate"
	WeaknessSevere   = "severe"
)

// Help request/offer states
const (
	HelpOpen      = "open"
	HelpResponded = "responded"
)

// PerformanceRecord is one student's evaluated result for one (subject, chapter).
// Records are append-only: re-evaluation inserts a new row and matching always
// reads the latest one per (student, subject, chapter).
type PerformanceRecord struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	StudentID          uint      `gorm:"not null;index:idx_perf_student_chapter" json:"student_id"`
	Subject            string    `gorm:"not null;index:idx_perf_student_chapter" json:"subject"`
	Chapter            string    `gorm:"not null;index:idx_perf_student_chapter" json:"chapter"`
	Score              Score10   `gorm:"not null" json:"score"`
	AccuracyPercentage Percent   `gorm:"not null" json:"accuracy_percentage"`
	WeaknessLevel      string    `gorm:"not null" json:"weakness_level"` // none, mild, moderate, severe
	TotalQuestions     int       `gorm:"default:0" json:"total_questions"`
	CorrectAnswers     int       `gorm:"default:0" json:"correct_answers"`
	LastAssessedAt     time.Time `json:"last_assessed_at"`
	CreatedAt          time.Time `json:"created_at"`
}

// Match is a proposed or confirmed tutor-learner pairing for one chapter.
// Scores and compatibility are a snapshot at match time and never change
// afterwards; only Status (and its timestamps) moves.
//
// Active is true while the match is pending or accepted and NULL once it is
// terminal, so the composite unique index below rejects a second concurrent
// insert of the same active pair without blocking re-matching after rejection.
type Match struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	TutorID            uint       `gorm:"not null;index;uniqueIndex:idx_active_pair" json:"tutor_id"`
	LearnerID          uint       `gorm:"not null;index;uniqueIndex:idx_active_pair" json:"learner_id"`
	Subject            string     `gorm:"not null;uniqueIndex:idx_active_pair" json:"subject"`
	Chapter            string     `gorm:"not null;uniqueIndex:idx_active_pair" json:"chapter"`
	TutorScore         Score10    `gorm:"not null" json:"tutor_score"`
	LearnerScore       Score10    `gorm:"not null" json:"learner_score"`
	CompatibilityScore Percent    `json:"compatibility_score"`
	TutorRank          int        `json:"tutor_rank"`   // position of learner in tutor's preference order
	LearnerRank        int        `json:"learner_rank"` // position of tutor in learner's preference order
	Status             string     `gorm:"not null;default:pending" json:"status"`
	Active             *bool      `gorm:"uniqueIndex:idx_active_pair" json:"-"`
	MatchedAt          time.Time  `json:"matched_at"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// HelpRequest is a learner's broadcast asking peers for help on the chapter of
// the referenced performance record.
type HelpRequest struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	StudentID     uint       `gorm:"not null;index" json:"student_id"`
	PerformanceID uint       `gorm:"not null" json:"performance_id"`
	Subject       string     `gorm:"not null" json:"subject"`
	Chapter       string     `gorm:"not null" json:"chapter"`
	Message       string     `json:"message,omitempty"`
	Urgency       string     `gorm:"default:normal" json:"urgency"` // low, normal, high
	Status        string     `gorm:"not null;default:open" json:"status"`
	ResponderID   *uint      `json:"responder_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
}

// HelpOffer is a tutor's broadcast offering help on the chapter of the
// referenced performance record.
type HelpOffer struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	StudentID     uint       `gorm:"not null;index" json:"student_id"`
	PerformanceID uint       `gorm:"not null" json:"performance_id"`
	Subject       string     `gorm:"not null" json:"subject"`
	Chapter       string     `gorm:"not null" json:"chapter"`
	Message       string     `json:"message,omitempty"`
	Availability  string     `json:"availability,omitempty"`
	Status        string     `gorm:"not null;default:open" json:"status"`
	ResponderID   *uint      `json:"responder_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
}

// IsTerminal reports whether a match status allows no further transitions.
func IsTerminal(status string) bool {
	return status == MatchRejected || status == MatchCompleted
}

// Request/Response Models

type CreateMatchesRequest struct {
	Subject string `json:"subject" binding:"required"`
	Chapter string `json:"chapter" binding:"required"`

	// Optional per-run overrides of the configured defaults
	TutorThreshold   *float64 `json:"tutor_threshold,omitempty" binding:"omitempty,gte=0,lte=10"`
	LearnerThreshold *float64 `json:"learner_threshold,omitempty" binding:"omitempty,gte=0,lte=10"`
	TutorCapacity    *int     `json:"tutor_capacity,omitempty" binding:"omitempty,gte=1"`
	LearnerCapacity  *int     `json:"learner_capacity,omitempty" binding:"omitempty,gte=1"`
}

type MatchingResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	MatchesCreated int      `json:"matches_created"`
	Matches        []*Match `json:"matches"`
}

type StudentMatchesResponse struct {
	TutoringMatches []*Match `json:"tutoring_matches"`
	LearningMatches []*Match `json:"learning_matches"`
	TotalMatches    int      `json:"total_matches"`
}

type MatchStatusUpdateRequest struct {
	Status string `json:"status" binding:"required,oneof=accepted rejected completed"`
}

type MatchingStatsResponse struct {
	TotalPotentialTutors   int      `json:"total_potential_tutors"`
	TotalPotentialLearners int      `json:"total_potential_learners"`
	ChaptersAvailable      []string `json:"chapters_available"`
	SubjectsAvailable      []string `json:"subjects_available"`
}

type ChapterListResponse struct {
	Subject       string   `json:"subject"`
	Chapters      []string `json:"chapters"`
	TotalStudents int      `json:"total_students"`
}

type RecordPerformanceRequest struct {
	StudentID          uint    `json:"student_id" binding:"required"`
	Subject            string  `json:"subject" binding:"required"`
	Chapter            string  `json:"chapter" binding:"required"`
	Score              float64 `json:"score" binding:"gte=0,lte=10"`
	AccuracyPercentage float64 `json:"accuracy_percentage" binding:"gte=0,lte=100"`
	WeaknessLevel      string  `json:"weakness_level" binding:"required,oneof=none mild moderate severe"`
	TotalQuestions     int     `json:"total_questions" binding:"gte=0"`
	CorrectAnswers     int     `json:"correct_answers" binding:"gte=0"`
}

type HelpRequestCreate struct {
	PerformanceID uint   `json:"performance_id" binding:"required"`
	Message       string `json:"message" binding:"max=500"`
	Urgency       string `json:"urgency" binding:"omitempty,oneof=low normal high"`
}

type HelpOfferCreate struct {
	PerformanceID uint   `json:"performance_id" binding:"required"`
	Message       string `json:"message" binding:"max=500"`
	Availability  string `json:"availability" binding:"max=200"`
}

// PotentialPeer is a ranked candidate in the compatibility preview endpoints.
type PotentialPeer struct {
	StudentID          uint    `json:"student_id"`
	Score              Score10 `json:"score"`
	AccuracyPercentage Percent `json:"accuracy_percentage"`
	CompatibilityScore Percent `json:"compatibility_score"`
}

type PotentialPeersResponse struct {
	Subject string          `json:"subject"`
	Chapter string          `json:"chapter"`
	Peers   []PotentialPeer `json:"peers"`
}
