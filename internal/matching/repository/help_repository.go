package repository

import (
	"time"

	"github.com/architect/peer-matching/internal/common/database"
	"github.com/architect/peer-matching/internal/common/errors"
	"github.com/architect/peer-matching/internal/matching/models"
	"gorm.io/gorm"
)

// CreateHelpRequest inserts a new help request
func CreateHelpRequest(request *models.HelpRequest) error {
	result := database.DB.Create(request)
	if result.Error != nil {
		return errors.Internal("failed to create help request", result.Error.Error())
	}
	return nil
}

// CreateHelpOffer inserts a new help offer
func CreateHelpOffer(offer *models.HelpOffer) error {
	result := database.DB.Create(offer)
	if result.Error != nil {
		return errors.Internal("failed to create help offer", result.Error.Error())
	}
	return nil
}

// GetHelpRequestByID retrieves a single help request
func GetHelpRequestByID(id uint) (*models.HelpRequest, error) {
	var request models.HelpRequest
	result := database.DB.First(&request, id)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("help request")
		}
		return nil, errors.Internal("failed to fetch help request", result.Error.Error())
	}

	return &request, nil
}

// GetHelpOfferByID retrieves a single help offer
func GetHelpOfferByID(id uint) (*models.HelpOffer, error) {
	var offer models.HelpOffer
	result := database.DB.First(&offer, id)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("help offer")
		}
		return nil, errors.Internal("failed to fetch help offer", result.Error.Error())
	}

	return &offer, nil
}

// ListHelpRequests retrieves help requests with optional filters, newest first
func ListHelpRequests(subject, chapter, status string) ([]*models.HelpRequest, error) {
	var requests []*models.HelpRequest

	query := database.DB.Order("created_at DESC, id DESC")
	if subject != "" {
		query = query.Where("subject = ?", subject)
	}
	if chapter != "" {
		query = query.Where("chapter = ?", chapter)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if result := query.Find(&requests); result.Error != nil {
		return nil, errors.Internal("failed to fetch help requests", result.Error.Error())
	}

	return requests, nil
}

// ListHelpOffers retrieves help offers with optional filters, newest first
func ListHelpOffers(subject, chapter, status string) ([]*models.HelpOffer, error) {
	var offers []*models.HelpOffer

	query := database.DB.Order("created_at DESC, id DESC")
	if subject != "" {
		query = query.Where("subject = ?", subject)
	}
	if chapter != "" {
		query = query.Where("chapter = ?", chapter)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if result := query.Find(&offers); result.Error != nil {
		return nil, errors.Internal("failed to fetch help offers", result.Error.Error())
	}

	return offers, nil
}

// ClaimHelpRequest atomically moves a help request from open to responded.
// Returns AlreadyResponded when another responder won the race: the update is
// a compare-and-set on the status column, so exactly one caller succeeds.
// Runs on the caller's handle so the claim can share a transaction with the
// match insert it pays for.
func ClaimHelpRequest(db *gorm.DB, id, responderID uint) error {
	now := time.Now().UTC()
	result := db.Model(&models.HelpRequest{}).
		Where("id = ? AND status = ?", id, models.HelpOpen).
		Updates(map[string]interface{}{
			"status":       models.HelpResponded,
			"responder_id": responderID,
			"responded_at": now,
		})

	if result.Error != nil {
		return errors.Internal("failed to respond to help request", result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return errors.AlreadyResponded("help request")
	}

	return nil
}

// ClaimHelpOffer atomically moves a help offer from open to responded.
// Same transaction contract as ClaimHelpRequest.
func ClaimHelpOffer(db *gorm.DB, id, responderID uint) error {
	now := time.Now().UTC()
	result := db.Model(&models.HelpOffer{}).
		Where("id = ? AND status = ?", id, models.HelpOpen).
		Updates(map[string]interface{}{
			"status":       models.HelpResponded,
			"responder_id": responderID,
			"responded_at": now,
		})

	if result.Error != nil {
		return errors.Internal("failed to respond to help offer", result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return errors.AlreadyResponded("help offer")
	}

	return nil
}
