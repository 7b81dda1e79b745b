package handlers

import (
	"strconv"

	"github.com/architect/peer-matching/internal/common/errors"
	"github.com/architect/peer-matching/internal/common/middleware"
	"github.com/architect/peer-matching/internal/matching/models"
	"github.com/architect/peer-matching/internal/matching/services"
	"github.com/gin-gonic/gin"
)

// currentStudentID extracts the authenticated student from the gin context.
func currentStudentID(c *gin.Context) (uint, bool) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}

	uid, err := strconv.ParseUint(userIDStr.(string), 10, 32)
	if err != nil {
		return 0, false
	}

	return uint(uid), true
}

// CreateMatches runs the matching pipeline for one (subject, chapter)
func CreateMatches(c *gin.Context) {
	var req models.CreateMatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("invalid create-matches request: "+err.Error()))
		return
	}

	cfg := services.Defaults().ApplyOverrides(req)

	response, err := services.CreateMatches(req.Subject, req.Chapter, cfg)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(200, response)
}

// GetMyMatches returns the caller's matches split into tutoring and learning
func GetMyMatches(c *gin.Context) {
	studentID, ok := currentStudentID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		return
	}

	matches, err := services.GetStudentMatches(studentID)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(200, matches)
}

// UpdateMatchStatus applies accept/reject/complete to a match
func UpdateMatchStatus(c *gin.Context) {
	studentID, ok := currentStudentID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		return
	}

	matchID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("invalid match id"))
		return
	}

	var req models.MatchStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("invalid status update: "+err.Error()))
		return
	}

	match, err := services.UpdateMatchStatus(uint(matchID), studentID, req.Status)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(200, match)
}

// GetStats reports potential tutor/learner counts and available chapters
func GetStats(c *gin.Context) {
	subject := c.Query("subject")
	chapter := c.Query("chapter")

	stats, err := services.GetMatchingStats(subject, chapter, services.Defaults())
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(200, stats)
}

// GetAvailableChapters lists chapters with performance data, by subject
func GetAvailableChapters(c *gin.Context) {
	chapters, err := services.GetAvailableChapters(c.Query("subject"))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(200, chapters)
}

// RecordPerformance appends a chapter evaluation result
func RecordPerformance(c *gin.Context) {
	var req models.RecordPerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("invalid performance payload: "+err.Error()))
		return
	}

	record, err := services.RecordPerformance(req)
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(201, record)
}

// GetStudentPerformance returns a student's current record per chapter
func GetStudentPerformance(c *gin.Context) {
	callerID, ok := currentStudentID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		return
	}

	studentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		middleware.JSONErrorResponse(c, errors.BadRequest("invalid student id"))
		return
	}

	// Staff access control lives with the auth collaborator; here a student
	// may only read their own performance.
	if uint(studentID) != callerID {
		middleware.JSONErrorResponse(c, errors.Forbidden("not authorized to view this student's performance"))
		return
	}

	records, err := services.GetStudentPerformance(uint(studentID), c.Query("subject"))
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(200, records)
}

// GetPotentialTutors previews ranked tutor candidates for the caller
func GetPotentialTutors(c *gin.Context) {
	studentID, ok := currentStudentID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		return
	}

	subject := c.Query("subject")
	chapter := c.Query("chapter")
	if subject == "" || chapter == "" {
		middleware.JSONErrorResponse(c, errors.BadRequest("subject and chapter are required"))
		return
	}

	peers, err := services.GetPotentialTutors(studentID, subject, chapter, services.Defaults())
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(200, peers)
}

// GetPotentialLearners previews ranked learner candidates for the caller
func GetPotentialLearners(c *gin.Context) {
	studentID, ok := currentStudentID(c)
	if !ok {
		middleware.JSONErrorResponse(c, errors.Unauthorized("missing or invalid authentication"))
		return
	}

	subject := c.Query("subject")
	chapter := c.Query("chapter")
	if subject == "" || chapter == "" {
		middleware.JSONErrorResponse(c, errors.BadRequest("subject and chapter are required"))
		return
	}

	peers, err := services.GetPotentialLearners(studentID, subject, chapter, services.Defaults())
	if err != nil {
		middleware.JSONErrorResponse(c, err)
		return
	}

	c.JSON(200, peers)
}
