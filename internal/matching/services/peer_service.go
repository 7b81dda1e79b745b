package services

import (
	"sort"

	"github.com/architect/peer-matching/internal/matching/models"
	"github.com/architect/peer-matching/internal/matching/repository"
)

const maxPeerPreview = 10

// GetPotentialTutors previews the tutors a struggling student could be
// paired with on a chapter, ranked by compatibility. The student needs a
// performance record for the chapter; an empty list otherwise.
func GetPotentialTutors(studentID uint, subject, chapter string, cfg Config) (*models.PotentialPeersResponse, error) {
	response := &models.PotentialPeersResponse{
		Subject: subject,
		Chapter: chapter,
		Peers:   []models.PotentialPeer{},
	}

	mine, err := repository.GetLatestPerformance(studentID, subject, chapter)
	if err != nil {
		return nil, err
	}
	if mine == nil {
		return response, nil
	}

	records, err := repository.ListLatestByChapter(subject, chapter)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.PotentialPeer, 0)
	for _, record := range records {
		if record.StudentID == studentID || record.Score < cfg.TutorThreshold {
			continue
		}
		candidates = append(candidates, models.PotentialPeer{
			StudentID:          record.StudentID,
			Score:              record.Score,
			AccuracyPercentage: record.AccuracyPercentage,
			CompatibilityScore: Compatibility(record.Score, mine.Score),
		})
	}

	response.Peers = topPeers(candidates)
	return response, nil
}

// GetPotentialLearners previews the learners a qualified student could help
// on a chapter, ranked by compatibility. Empty when the student does not
// meet the tutor threshold.
func GetPotentialLearners(studentID uint, subject, chapter string, cfg Config) (*models.PotentialPeersResponse, error) {
	response := &models.PotentialPeersResponse{
		Subject: subject,
		Chapter: chapter,
		Peers:   []models.PotentialPeer{},
	}

	mine, err := repository.GetLatestPerformance(studentID, subject, chapter)
	if err != nil {
		return nil, err
	}
	if mine == nil || mine.Score < cfg.TutorThreshold {
		return response, nil
	}

	records, err := repository.ListLatestByChapter(subject, chapter)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.PotentialPeer, 0)
	for _, record := range records {
		if record.StudentID == studentID || record.Score > cfg.LearnerThreshold {
			continue
		}
		candidates = append(candidates, models.PotentialPeer{
			StudentID:          record.StudentID,
			Score:              record.Score,
			AccuracyPercentage: record.AccuracyPercentage,
			CompatibilityScore: Compatibility(mine.Score, record.Score),
		})
	}

	response.Peers = topPeers(candidates)
	return response, nil
}

func topPeers(peers []models.PotentialPeer) []models.PotentialPeer {
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].CompatibilityScore != peers[j].CompatibilityScore {
			return peers[i].CompatibilityScore > peers[j].CompatibilityScore
		}
		return peers[i].StudentID < peers[j].StudentID
	})

	if len(peers) > maxPeerPreview {
		peers = peers[:maxPeerPreview]
	}
	return peers
}
