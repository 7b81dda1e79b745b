package services

import (
	"time"

	"github.com/architect/peer-matching/internal/common/database"
	"github.com/architect/peer-matching/internal/common/errors"
	"github.com/architect/peer-matching/internal/matching/models"
	"github.com/architect/peer-matching/internal/matching/repository"
	"github.com/architect/peer-matching/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateHelpRequest broadcasts a request for help on the chapter of the given
// performance record. The record must belong to the requesting student and
// sit at or below the learner threshold; this path bypasses the automatic
// matcher, so the threshold is enforced here independently.
func CreateHelpRequest(studentID uint, req models.HelpRequestCreate, cfg Config) (*models.HelpRequest, error) {
	record, err := repository.GetPerformanceByID(req.PerformanceID)
	if err != nil {
		return nil, err
	}

	if record.StudentID != studentID {
		return nil, errors.Forbidden("performance record belongs to another student")
	}
	if record.Score > cfg.LearnerThreshold {
		return nil, errors.Validation("score too high to request help",
			"help requests require a chapter score at or below the learner threshold")
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = "normal"
	}

	request := &models.HelpRequest{
		StudentID:     studentID,
		PerformanceID: record.ID,
		Subject:       record.Subject,
		Chapter:       record.Chapter,
		Message:       req.Message,
		Urgency:       urgency,
		Status:        models.HelpOpen,
		CreatedAt:     time.Now().UTC(),
	}

	if err := repository.CreateHelpRequest(request); err != nil {
		return nil, err
	}

	return request, nil
}

// CreateHelpOffer broadcasts an offer to help on the chapter of the given
// performance record. The record must belong to the offering student and
// meet the tutor threshold.
func CreateHelpOffer(studentID uint, req models.HelpOfferCreate, cfg Config) (*models.HelpOffer, error) {
	record, err := repository.GetPerformanceByID(req.PerformanceID)
	if err != nil {
		return nil, err
	}

	if record.StudentID != studentID {
		return nil, errors.Forbidden("performance record belongs to another student")
	}
	if record.Score < cfg.TutorThreshold {
		return nil, errors.Validation("score too low to offer help",
			"help offers require a chapter score at or above the tutor threshold")
	}

	offer := &models.HelpOffer{
		StudentID:     studentID,
		PerformanceID: record.ID,
		Subject:       record.Subject,
		Chapter:       record.Chapter,
		Message:       req.Message,
		Availability:  req.Availability,
		Status:        models.HelpOpen,
		CreatedAt:     time.Now().UTC(),
	}

	if err := repository.CreateHelpOffer(offer); err != nil {
		return nil, err
	}

	return offer, nil
}

// RespondToHelpRequest lets a qualified tutor claim an open help request.
// First writer wins: the claim is a compare-and-set on the request status, and
// the loser gets AlreadyResponded. The claim and the Match insert commit in
// one transaction: if the pair already holds an active match the insert fails
// and the claim rolls back, leaving the request open for other tutors. A
// successful claim creates a pending Match so the regular lifecycle governs
// the connection from here on.
func RespondToHelpRequest(requestID, responderID uint, cfg Config) (*models.Match, error) {
	request, err := repository.GetHelpRequestByID(requestID)
	if err != nil {
		return nil, err
	}

	if request.StudentID == responderID {
		return nil, errors.BadRequest("cannot respond to your own help request")
	}
	if request.Status != models.HelpOpen {
		return nil, errors.AlreadyResponded("help request")
	}

	tutorRecord, err := repository.GetLatestPerformance(responderID, request.Subject, request.Chapter)
	if err != nil {
		return nil, err
	}
	if tutorRecord == nil || tutorRecord.Score < cfg.TutorThreshold {
		return nil, errors.Validation("not qualified to tutor this chapter",
			"responding to a help request requires a chapter score at or above the tutor threshold")
	}

	learnerRecord, err := repository.GetPerformanceByID(request.PerformanceID)
	if err != nil {
		return nil, err
	}

	var match *models.Match
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := repository.ClaimHelpRequest(tx, requestID, responderID); err != nil {
			return err
		}

		claimed, err := createPendingMatch(tx, tutorRecord, learnerRecord, request.Subject, request.Chapter)
		if err != nil {
			return err
		}
		match = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Info("help request answered",
		zap.Uint("request_id", requestID),
		zap.Uint("tutor_id", responderID),
		zap.Uint("learner_id", request.StudentID),
	)

	return match, nil
}

// RespondToHelpOffer lets a struggling student claim an open help offer.
// Same first-writer-wins and transaction semantics as RespondToHelpRequest,
// with the roles reversed: the offer's poster becomes the tutor.
func RespondToHelpOffer(offerID, responderID uint, cfg Config) (*models.Match, error) {
	offer, err := repository.GetHelpOfferByID(offerID)
	if err != nil {
		return nil, err
	}

	if offer.StudentID == responderID {
		return nil, errors.BadRequest("cannot respond to your own help offer")
	}
	if offer.Status != models.HelpOpen {
		return nil, errors.AlreadyResponded("help offer")
	}

	learnerRecord, err := repository.GetLatestPerformance(responderID, offer.Subject, offer.Chapter)
	if err != nil {
		return nil, err
	}
	if learnerRecord == nil || learnerRecord.Score > cfg.LearnerThreshold {
		return nil, errors.Validation("not eligible for this help offer",
			"responding to a help offer requires a chapter score at or below the learner threshold")
	}

	tutorRecord, err := repository.GetPerformanceByID(offer.PerformanceID)
	if err != nil {
		return nil, err
	}

	var match *models.Match
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := repository.ClaimHelpOffer(tx, offerID, responderID); err != nil {
			return err
		}

		claimed, err := createPendingMatch(tx, tutorRecord, learnerRecord, offer.Subject, offer.Chapter)
		if err != nil {
			return err
		}
		match = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Info("help offer answered",
		zap.Uint("offer_id", offerID),
		zap.Uint("tutor_id", offer.StudentID),
		zap.Uint("learner_id", responderID),
	)

	return match, nil
}

// ListHelpRequests returns help requests matching the filters, newest first.
func ListHelpRequests(subject, chapter, status string) ([]*models.HelpRequest, error) {
	return repository.ListHelpRequests(subject, chapter, status)
}

// ListHelpOffers returns help offers matching the filters, newest first.
func ListHelpOffers(subject, chapter, status string) ([]*models.HelpOffer, error) {
	return repository.ListHelpOffers(subject, chapter, status)
}

// createPendingMatch mints the Match record for a claimed help broadcast
// inside the claim's transaction, snapshotting both scores and their
// compatibility at claim time.
func createPendingMatch(tx *gorm.DB, tutor, learner *models.PerformanceRecord, subject, chapter string) (*models.Match, error) {
	active := true
	match := &models.Match{
		TutorID:            tutor.StudentID,
		LearnerID:          learner.StudentID,
		Subject:            subject,
		Chapter:            chapter,
		TutorScore:         tutor.Score,
		LearnerScore:       learner.Score,
		CompatibilityScore: Compatibility(tutor.Score, learner.Score),
		TutorRank:          -1, // manual connections carry no preference rank
		LearnerRank:        -1,
		Status:             models.MatchPending,
		Active:             &active,
		MatchedAt:          time.Now().UTC(),
	}

	if err := repository.CreateMatchTx(tx, match); err != nil {
		return nil, err
	}

	return match, nil
}
