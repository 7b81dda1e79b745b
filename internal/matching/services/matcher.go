package services

import (
	"sort"

	"github.com/architect/peer-matching/internal/matching/models"
)

// Pairing is one proposed tutor-learner assignment produced by a matching run.
type Pairing struct {
	Tutor         *models.PerformanceRecord
	Learner       *models.PerformanceRecord
	Compatibility models.Percent
	TutorRank     int // position of the learner in the tutor's preference order
	LearnerRank   int // position of the tutor in the learner's preference order
}

// candidate is one entry in a preference list.
type candidate struct {
	record        *models.PerformanceRecord
	compatibility models.Percent
}

// MatchPool runs learner-proposing deferred acceptance over the candidate
// pool and returns the stable assignment under the compatibility ordering.
//
// Every round, each learner holding fewer tutors than its capacity proposes
// to its most-preferred tutor it has not yet tried. A tutor holds its best
// proposals up to capacity and rejects the rest; a strictly better proposal
// displaces the tutor's worst current hold, freeing that learner to propose
// further down its list. Terminates when no learner with remaining capacity
// has an untried tutor left.
//
// Deterministic: given identical records and config the output pairings and
// their order are identical. Asymmetric pools are fine; the excess side
// simply stays unmatched.
func MatchPool(pool *CandidatePool, cfg Config) []Pairing {
	if pool.IsEmpty() {
		return nil
	}

	tutorCap := cfg.TutorCapacity
	if tutorCap < 1 {
		tutorCap = 1
	}
	learnerCap := cfg.LearnerCapacity
	if learnerCap < 1 {
		learnerCap = 1
	}

	// Learner preference lists over tutors, best first.
	learnerPrefs := make(map[uint][]candidate, len(pool.Learners))
	for _, learner := range pool.Learners {
		prefs := make([]candidate, 0, len(pool.Tutors))
		for _, tutor := range pool.Tutors {
			if tutor.StudentID == learner.StudentID {
				continue
			}
			prefs = append(prefs, candidate{
				record:        tutor,
				compatibility: Compatibility(tutor.Score, learner.Score),
			})
		}
		sort.Slice(prefs, func(i, j int) bool {
			return preferCandidate(prefs[i].record, prefs[i].compatibility,
				prefs[j].record, prefs[j].compatibility)
		})
		learnerPrefs[learner.StudentID] = prefs
	}

	// Tutor preference ranks over learners, for the rank bookkeeping on the
	// persisted match and for hold comparisons.
	tutorRank := make(map[uint]map[uint]int, len(pool.Tutors))
	for _, tutor := range pool.Tutors {
		prefs := make([]candidate, 0, len(pool.Learners))
		for _, learner := range pool.Learners {
			if learner.StudentID == tutor.StudentID {
				continue
			}
			prefs = append(prefs, candidate{
				record:        learner,
				compatibility: Compatibility(tutor.Score, learner.Score),
			})
		}
		sort.Slice(prefs, func(i, j int) bool {
			return preferCandidate(prefs[i].record, prefs[i].compatibility,
				prefs[j].record, prefs[j].compatibility)
		})
		ranks := make(map[uint]int, len(prefs))
		for i, c := range prefs {
			ranks[c.record.StudentID] = i
		}
		tutorRank[tutor.StudentID] = ranks
	}

	type hold struct {
		learner       *models.PerformanceRecord
		compatibility models.Percent
	}

	// held: tutor -> current holds; heldCount: learner -> tutors holding it
	held := make(map[uint][]hold, len(pool.Tutors))
	heldCount := make(map[uint]int, len(pool.Learners))
	nextProposal := make(map[uint]int, len(pool.Learners))

	// Sweep learners in ID order until a full pass makes no proposal.
	// Each proposal consumes a preference entry, so the loop is bounded by
	// |learners| * |tutors|.
	for {
		progress := false

		for _, learner := range pool.Learners {
			lid := learner.StudentID
			prefs := learnerPrefs[lid]

			for heldCount[lid] < learnerCap && nextProposal[lid] < len(prefs) {
				next := prefs[nextProposal[lid]]
				nextProposal[lid]++
				progress = true

				tid := next.record.StudentID
				holds := held[tid]

				if len(holds) < tutorCap {
					held[tid] = append(holds, hold{learner, next.compatibility})
					heldCount[lid]++
					continue
				}

				// Tutor full: find its worst hold and displace it only if
				// this proposal is strictly better.
				worst := 0
				for i := 1; i < len(holds); i++ {
					if preferCandidate(holds[worst].learner, holds[worst].compatibility,
						holds[i].learner, holds[i].compatibility) {
						worst = i
					}
				}

				if preferCandidate(learner, next.compatibility,
					holds[worst].learner, holds[worst].compatibility) {
					displaced := holds[worst].learner.StudentID
					holds[worst] = hold{learner, next.compatibility}
					held[tid] = holds
					heldCount[displaced]--
					heldCount[lid]++
				}
				// Rejected proposals just advance the learner's list.
			}
		}

		if !progress {
			break
		}
	}

	// All tentative holds at termination become the output.
	pairings := make([]Pairing, 0)
	for _, tutor := range pool.Tutors {
		for _, h := range held[tutor.StudentID] {
			learnerRank := -1
			for i, c := range learnerPrefs[h.learner.StudentID] {
				if c.record.StudentID == tutor.StudentID {
					learnerRank = i
					break
				}
			}
			rank, ok := tutorRank[tutor.StudentID][h.learner.StudentID]
			if !ok {
				rank = -1
			}
			pairings = append(pairings, Pairing{
				Tutor:         tutor,
				Learner:       h.learner,
				Compatibility: h.compatibility,
				TutorRank:     rank,
				LearnerRank:   learnerRank,
			})
		}
	}

	sort.Slice(pairings, func(i, j int) bool {
		if pairings[i].Compatibility != pairings[j].Compatibility {
			return pairings[i].Compatibility > pairings[j].Compatibility
		}
		if pairings[i].Tutor.StudentID != pairings[j].Tutor.StudentID {
			return pairings[i].Tutor.StudentID < pairings[j].Tutor.StudentID
		}
		return pairings[i].Learner.StudentID < pairings[j].Learner.StudentID
	})

	return pairings
}
