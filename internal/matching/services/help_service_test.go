package services

import (
	"testing"

	"github.com/architect/peer-matching/internal/common/errors"
	"github.com/architect/peer-matching/internal/matching/models"
	"github.com/architect/peer-matching/internal/matching/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateHelpRequest(t *testing.T) {
	setupTestDB(t)
	rec := seedPerformance(t, 11, "math", "fractions", 3)

	request, err := CreateHelpRequest(11, models.HelpRequestCreate{
		PerformanceID: rec.ID,
		Message:       "stuck on mixed numbers",
		Urgency:       "high",
	}, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, uint(11), request.StudentID)
	assert.Equal(t, "math", request.Subject)
	assert.Equal(t, "fractions", request.Chapter)
	assert.Equal(t, "high", request.Urgency)
	assert.Equal(t, models.HelpOpen, request.Status)
}

func TestCreateHelpRequestDefaultsUrgency(t *testing.T) {
	setupTestDB(t)
	rec := seedPerformance(t, 11, "math", "fractions", 3)

	request, err := CreateHelpRequest(11, models.HelpRequestCreate{
		PerformanceID: rec.ID,
	}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "normal", request.Urgency)
}

func TestCreateHelpRequestOwnership(t *testing.T) {
	setupTestDB(t)
	rec := seedPerformance(t, 11, "math", "fractions", 3)

	_, err := CreateHelpRequest(12, models.HelpRequestCreate{
		PerformanceID: rec.ID,
	}, DefaultConfig())
	requireAppCode(t, err, errors.CodeForbidden)
}

func TestCreateHelpRequestScoreTooHigh(t *testing.T) {
	setupTestDB(t)
	rec := seedPerformance(t, 11, "math", "fractions", 8)

	_, err := CreateHelpRequest(11, models.HelpRequestCreate{
		PerformanceID: rec.ID,
	}, DefaultConfig())
	requireAppCode(t, err, errors.CodeValidation)
}

func TestCreateHelpOffer(t *testing.T) {
	setupTestDB(t)
	rec := seedPerformance(t, 1, "math", "fractions", 9)

	offer, err := CreateHelpOffer(1, models.HelpOfferCreate{
		PerformanceID: rec.ID,
		Message:       "happy to walk through fractions",
		Availability:  "weekday evenings",
	}, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, uint(1), offer.StudentID)
	assert.Equal(t, models.HelpOpen, offer.Status)
	assert.Equal(t, "weekday evenings", offer.Availability)
}

func TestCreateHelpOfferScoreTooLow(t *testing.T) {
	setupTestDB(t)
	rec := seedPerformance(t, 1, "math", "fractions", 5)

	_, err := CreateHelpOffer(1, models.HelpOfferCreate{
		PerformanceID: rec.ID,
	}, DefaultConfig())
	requireAppCode(t, err, errors.CodeValidation)
}

func TestRespondToHelpRequestCreatesMatch(t *testing.T) {
	setupTestDB(t)
	learnerRec := seedPerformance(t, 11, "math", "fractions", 3)
	seedPerformance(t, 1, "math", "fractions", 9)

	request, err := CreateHelpRequest(11, models.HelpRequestCreate{
		PerformanceID: learnerRec.ID,
	}, DefaultConfig())
	require.NoError(t, err)

	match, err := RespondToHelpRequest(request.ID, 1, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, uint(1), match.TutorID)
	assert.Equal(t, uint(11), match.LearnerID)
	assert.Equal(t, models.MatchPending, match.Status)
	assert.Equal(t, -1, match.TutorRank)
	assert.Equal(t, -1, match.LearnerRank)
	assert.InDelta(t, float64(Compatibility(9, 3)), float64(match.CompatibilityScore), 1e-9)

	claimed, err := repository.GetHelpRequestByID(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HelpResponded, claimed.Status)
	require.NotNil(t, claimed.ResponderID)
	assert.Equal(t, uint(1), *claimed.ResponderID)
	assert.NotNil(t, claimed.RespondedAt)
}

func TestRespondToHelpRequestFirstWriterWins(t *testing.T) {
	setupTestDB(t)
	learnerRec := seedPerformance(t, 11, "math", "fractions", 3)
	seedPerformance(t, 1, "math", "fractions", 9)
	seedPerformance(t, 2, "math", "fractions", 8)

	request, err := CreateHelpRequest(11, models.HelpRequestCreate{
		PerformanceID: learnerRec.ID,
	}, DefaultConfig())
	require.NoError(t, err)

	_, err = RespondToHelpRequest(request.ID, 1, DefaultConfig())
	require.NoError(t, err)

	_, err = RespondToHelpRequest(request.ID, 2, DefaultConfig())
	requireAppCode(t, err, errors.CodeAlreadyResponded)
}

// A respond that cannot mint the match, because the responder and poster
// already hold an active match for the chapter, rolls the claim back: the
// request stays open and another tutor can still answer it.
func TestRespondToHelpRequestRollsBackWhenPairActive(t *testing.T) {
	setupTestDB(t)
	seedPerformance(t, 1, "math", "fractions", 9)
	learnerRec := seedPerformance(t, 11, "math", "fractions", 3)

	created, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, created.MatchesCreated)
	require.Equal(t, uint(1), created.Matches[0].TutorID)

	request, err := CreateHelpRequest(11, models.HelpRequestCreate{
		PerformanceID: learnerRec.ID,
	}, DefaultConfig())
	require.NoError(t, err)

	// Tutor 1 already holds the active match with learner 11
	_, err = RespondToHelpRequest(request.ID, 1, DefaultConfig())
	requireAppCode(t, err, errors.CodeConflict)

	reloaded, err := repository.GetHelpRequestByID(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HelpOpen, reloaded.Status)
	assert.Nil(t, reloaded.ResponderID)

	// A different qualified tutor can still claim it
	seedPerformance(t, 2, "math", "fractions", 8)
	match, err := RespondToHelpRequest(request.ID, 2, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, uint(2), match.TutorID)
	assert.Equal(t, uint(11), match.LearnerID)
}

func TestRespondToHelpOfferRollsBackWhenPairActive(t *testing.T) {
	setupTestDB(t)
	tutorRec := seedPerformance(t, 1, "math", "fractions", 9)
	seedPerformance(t, 11, "math", "fractions", 3)

	created, err := CreateMatches("math", "fractions", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, created.MatchesCreated)

	offer, err := CreateHelpOffer(1, models.HelpOfferCreate{
		PerformanceID: tutorRec.ID,
	}, DefaultConfig())
	require.NoError(t, err)

	_, err = RespondToHelpOffer(offer.ID, 11, DefaultConfig())
	requireAppCode(t, err, errors.CodeConflict)

	reloaded, err := repository.GetHelpOfferByID(offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HelpOpen, reloaded.Status)
	assert.Nil(t, reloaded.ResponderID)

	// A learner without an active match with the poster can still claim it
	seedPerformance(t, 12, "math", "fractions", 4)
	match, err := RespondToHelpOffer(offer.ID, 12, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, uint(1), match.TutorID)
	assert.Equal(t, uint(12), match.LearnerID)
}

func TestRespondToHelpRequestSelf(t *testing.T) {
	setupTestDB(t)
	learnerRec := seedPerformance(t, 11, "math", "fractions", 3)

	request, err := CreateHelpRequest(11, models.HelpRequestCreate{
		PerformanceID: learnerRec.ID,
	}, DefaultConfig())
	require.NoError(t, err)

	_, err = RespondToHelpRequest(request.ID, 11, DefaultConfig())
	requireAppCode(t, err, errors.CodeBadRequest)
}

func TestRespondToHelpRequestUnqualified(t *testing.T) {
	setupTestDB(t)
	learnerRec := seedPerformance(t, 11, "math", "fractions", 3)

	request, err := CreateHelpRequest(11, models.HelpRequestCreate{
		PerformanceID: learnerRec.ID,
	}, DefaultConfig())
	require.NoError(t, err)

	t.Run("no performance record", func(t *testing.T) {
		_, err := RespondToHelpRequest(request.ID, 99, DefaultConfig())
		requireAppCode(t, err, errors.CodeValidation)
	})

	t.Run("score below tutor threshold", func(t *testing.T) {
		seedPerformance(t, 3, "math", "fractions", 6)
		_, err := RespondToHelpRequest(request.ID, 3, DefaultConfig())
		requireAppCode(t, err, errors.CodeValidation)
	})
}

func TestRespondToHelpOfferCreatesMatch(t *testing.T) {
	setupTestDB(t)
	tutorRec := seedPerformance(t, 1, "math", "fractions", 9)
	seedPerformance(t, 11, "math", "fractions", 4)

	offer, err := CreateHelpOffer(1, models.HelpOfferCreate{
		PerformanceID: tutorRec.ID,
	}, DefaultConfig())
	require.NoError(t, err)

	match, err := RespondToHelpOffer(offer.ID, 11, DefaultConfig())
	require.NoError(t, err)

	// The offer's poster is the tutor, the responder the learner
	assert.Equal(t, uint(1), match.TutorID)
	assert.Equal(t, uint(11), match.LearnerID)
	assert.Equal(t, models.MatchPending, match.Status)

	claimed, err := repository.GetHelpOfferByID(offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HelpResponded, claimed.Status)
}

func TestRespondToHelpOfferIneligible(t *testing.T) {
	setupTestDB(t)
	tutorRec := seedPerformance(t, 1, "math", "fractions", 9)
	seedPerformance(t, 12, "math", "fractions", 8) // too strong to need help

	offer, err := CreateHelpOffer(1, models.HelpOfferCreate{
		PerformanceID: tutorRec.ID,
	}, DefaultConfig())
	require.NoError(t, err)

	_, err = RespondToHelpOffer(offer.ID, 12, DefaultConfig())
	requireAppCode(t, err, errors.CodeValidation)
}

func TestListHelpRequestsFilters(t *testing.T) {
	setupTestDB(t)
	mathRec := seedPerformance(t, 11, "math", "fractions", 3)
	sciRec := seedPerformance(t, 12, "science", "plants", 2)

	_, err := CreateHelpRequest(11, models.HelpRequestCreate{PerformanceID: mathRec.ID}, DefaultConfig())
	require.NoError(t, err)
	_, err = CreateHelpRequest(12, models.HelpRequestCreate{PerformanceID: sciRec.ID}, DefaultConfig())
	require.NoError(t, err)

	all, err := ListHelpRequests("", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mathOnly, err := ListHelpRequests("math", "", "")
	require.NoError(t, err)
	require.Len(t, mathOnly, 1)
	assert.Equal(t, uint(11), mathOnly[0].StudentID)

	open, err := ListHelpRequests("", "", models.HelpOpen)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}
