package handlers

import (
	"strconv"

	"github.com/architect/peer-matching/internal/common/errors"
	"github.com/architect/peer-matching/internal/common/middleware"
	"github.com/architect/peer-matching/internal/matching/models"
	"github.com/architect/peer-matching/internal/matching/services"
	"github.com/gin-gonic/gin"
)

// CreateHelpRequest broadcasts a help request for the caller
func CreateHelpRequest(c *gin.Context) {
	studentID, ok := currentStudentID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		return
	}

	var req models.HelpRequestCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("invalid help request: "+err.Error()))
		return
	}

	request, err := services.CreateHelpRequest(studentID, req, services.Defaults())
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(201, request)
}

// CreateHelpOffer broadcasts a help offer for the caller
func CreateHelpOffer(c *gin.Context) {
	studentID, ok := currentStudentID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		return
	}

	var req models.HelpOfferCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("invalid help offer: "+err.Error()))
		return
	}

	offer, err := services.CreateHelpOffer(studentID, req, services.Defaults())
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(201, offer)
}

// ListHelpRequests returns help requests filtered by query params
func ListHelpRequests(c *gin.Context) {
	requests, err := services.ListHelpRequests(
		c.Query("subject"), c.Query("chapter"), c.Query("status"))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(200, requests)
}

// ListHelpOffers returns help offers filtered by query params
func ListHelpOffers(c *gin.Context) {
	offers, err := services.ListHelpOffers(
		c.Query("subject"), c.Query("chapter"), c.Query("status"))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(200, offers)
}

// RespondToHelpRequest claims an open help request for the caller as tutor
func RespondToHelpRequest(c *gin.Context) {
	responderID, ok := currentStudentID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		return
	}

	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("invalid help request id"))
		return
	}

	match, err := services.RespondToHelpRequest(uint(requestID), responderID, services.Defaults())
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(201, match)
}

// RespondToHelpOffer claims an open help offer for the caller as learner
func RespondToHelpOffer(c *gin.Context) {
	responderID, ok := currentStudentID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		return
	}

	offerID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("invalid help offer id"))
		return
	}

	match, err := services.RespondToHelpOffer(uint(offerID), responderID, services.Defaults())
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(201, match)
}
