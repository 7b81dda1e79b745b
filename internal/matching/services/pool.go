package services

import (
	"sort"

	"github.com/architect/peer-matching/internal/matching/models"
	"github.com/architect/peer-matching/pkg/config"
)

// Config tunes one matching run.
type Config struct {
	TutorThreshold   models.Score10 // minimum score to tutor a chapter
	LearnerThreshold models.Score10 // maximum score to receive help
	TutorCapacity    int            // learners a tutor can hold per run
	LearnerCapacity  int            // tutors a learner can hold per run
}

// DefaultConfig returns the standard thresholds and capacities.
func DefaultConfig() Config {
	return Config{
		TutorThreshold:   7.0,
		LearnerThreshold: 5.0,
		TutorCapacity:    1,
		LearnerCapacity:  1,
	}
}

var defaults = DefaultConfig()

// SetDefaults installs the application-level matching defaults at startup.
func SetDefaults(cfg Config) {
	defaults = cfg
}

// Defaults returns the current application-level matching defaults.
func Defaults() Config {
	return defaults
}

// ConfigFrom builds a run config from the application defaults.
func ConfigFrom(mc config.MatchingConfig) Config {
	cfg := Config{
		TutorThreshold:   models.Score10(mc.TutorThreshold),
		LearnerThreshold: models.Score10(mc.LearnerThreshold),
		TutorCapacity:    mc.TutorCapacity,
		LearnerCapacity:  mc.LearnerCapacity,
	}
	if cfg.TutorCapacity < 1 {
		cfg.TutorCapacity = 1
	}
	if cfg.LearnerCapacity < 1 {
		cfg.LearnerCapacity = 1
	}
	return cfg
}

// ApplyOverrides applies per-request overrides from a create-matches call.
func (c Config) ApplyOverrides(req models.CreateMatchesRequest) Config {
	if req.TutorThreshold != nil {
		c.TutorThreshold = models.Score10(*req.TutorThreshold)
	}
	if req.LearnerThreshold != nil {
		c.LearnerThreshold = models.Score10(*req.LearnerThreshold)
	}
	if req.TutorCapacity != nil {
		c.TutorCapacity = *req.TutorCapacity
	}
	if req.LearnerCapacity != nil {
		c.LearnerCapacity = *req.LearnerCapacity
	}
	return c
}

// CandidatePool partitions a chapter's students into tutor and learner
// candidates. Ephemeral: computed per run, never persisted.
type CandidatePool struct {
	Subject  string
	Chapter  string
	Tutors   []*models.PerformanceRecord
	Learners []*models.PerformanceRecord
}

// IsEmpty reports whether no pairing is possible. This is the normal
// "no matches possible yet" outcome, not an error.
func (p *CandidatePool) IsEmpty() bool {
	return len(p.Tutors) == 0 || len(p.Learners) == 0
}

// BuildPool partitions performance records into tutor and learner pools.
// Pure function of its inputs: records must already be the latest per
// student for this (subject, chapter); activeStudents holds everyone with a
// pending or accepted match for this exact chapter and is excluded from both
// pools. Students in the mid band (learner threshold < score < tutor
// threshold) land in neither pool.
func BuildPool(subject, chapter string, records []*models.PerformanceRecord, activeStudents map[uint]bool, cfg Config) *CandidatePool {
	pool := &CandidatePool{
		Subject:  subject,
		Chapter:  chapter,
		Tutors:   make([]*models.PerformanceRecord, 0),
		Learners: make([]*models.PerformanceRecord, 0),
	}

	for _, record := range records {
		if activeStudents[record.StudentID] {
			continue
		}

		switch {
		case record.Score >= cfg.TutorThreshold:
			pool.Tutors = append(pool.Tutors, record)
		case record.Score <= cfg.LearnerThreshold:
			pool.Learners = append(pool.Learners, record)
		}
	}

	// Stable pool order regardless of input order
	sort.Slice(pool.Tutors, func(i, j int) bool {
		return pool.Tutors[i].StudentID < pool.Tutors[j].StudentID
	})
	sort.Slice(pool.Learners, func(i, j int) bool {
		return pool.Learners[i].StudentID < pool.Learners[j].StudentID
	})

	return pool
}
