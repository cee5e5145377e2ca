package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
	"github.com/rabbitctf/rabbitctf-api/internal/service"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoring"
)

func TestAdminCreate(t *testing.T) {
	// Arrange
	challenges := new(MockChallengeUseCase)
	h := NewChallengeHandler(challenges)
	challenges.On("Create", mock.Anything, mock.MatchedBy(func(a service.Actor) bool {
		return a.UserID == 1 && a.IsAdmin && a.IP == "10.0.0.5"
	}), mock.MatchedBy(func(in service.ChallengeInput) bool {
		return in.Title == "Baby RSA" && in.Flag == "flag{rsa}" && in.ScoringMode == entity.ScoringDynamic && in.DecayFactor == 0.9
	})).Return(&entity.Challenge{ID: 5, Title: "Baby RSA", FlagValue: "flag{rsa}"}, nil)

	c, w := newTestGinContext(http.MethodPost, "/api/v1/admin/challenges", map[string]interface{}{
		"title": "Baby RSA", "flag": "flag{rsa}", "scoring_mode": "dynamic", "base_score": 500, "min_score": 100, "decay_factor": 0.9,
	})
	asUser(c, 1, true)

	// Act
	h.AdminCreate(c)

	// Assert
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "flag{rsa}")
	challenges.AssertExpectations(t)
}

func TestAdminCreate_ValidationFromService(t *testing.T) {
	challenges := new(MockChallengeUseCase)
	h := NewChallengeHandler(challenges)
	challenges.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, apperrors.ErrValidation)
	c, w := newTestGinContext(http.MethodPost, "/api/v1/admin/challenges", map[string]interface{}{"title": "ab", "base_score": 100})
	asUser(c, 1, true)

	h.AdminCreate(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminUpdate_ScoringLocked(t *testing.T) {
	challenges := new(MockChallengeUseCase)
	h := NewChallengeHandler(challenges)
	challenges.On("Update", mock.Anything, mock.Anything, uint(5), mock.Anything).Return(nil, service.ErrScoringLocked)
	c, w := newTestGinContext(http.MethodPut, "/api/v1/admin/challenges/5", map[string]interface{}{"title": "Baby RSA", "base_score": 300})
	asUser(c, 1, true)
	c.Set(ContextChallengeID, uint(5))

	h.AdminUpdate(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminGet_IncludesFlag(t *testing.T) {
	challenges := new(MockChallengeUseCase)
	h := NewChallengeHandler(challenges)
	challenges.On("GetForAdmin", mock.Anything, uint(5)).Return(&service.AdminChallenge{
		Challenge:    entity.Challenge{ID: 5, Title: "Baby RSA", FlagValue: "flag{rsa}", BaseScore: 500},
		SolveCount:   2,
		CurrentScore: 405,
	}, nil)
	c, w := newTestGinContext(http.MethodGet, "/api/v1/admin/challenges/5", nil)
	c.Set(ContextChallengeID, uint(5))

	h.AdminGet(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, "flag{rsa}", resp["flag"])
	assert.Equal(t, "Baby RSA", resp["title"])
	assert.Equal(t, float64(2), resp["solve_count"])
	assert.Equal(t, float64(405), resp["current_score"])
}

func TestAdminSetVisibility(t *testing.T) {
	t.Run("is_visible is required", func(t *testing.T) {
		challenges := new(MockChallengeUseCase)
		h := NewChallengeHandler(challenges)
		c, w := newTestGinContext(http.MethodPut, "/api/v1/admin/challenges/5/visibility", map[string]interface{}{"is_draft": false})
		c.Set(ContextChallengeID, uint(5))

		h.AdminSetVisibility(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		challenges.AssertNotCalled(t, "SetVisibility", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("publish", func(t *testing.T) {
		challenges := new(MockChallengeUseCase)
		h := NewChallengeHandler(challenges)
		challenges.On("SetVisibility", mock.Anything, mock.Anything, uint(5), true, mock.MatchedBy(func(d *bool) bool {
			return d != nil && !*d
		})).Return(&entity.Challenge{ID: 5, IsVisible: true}, nil)
		c, w := newTestGinContext(http.MethodPut, "/api/v1/admin/challenges/5/visibility", map[string]interface{}{"is_visible": true, "is_draft": false})
		asUser(c, 1, true)
		c.Set(ContextChallengeID, uint(5))

		h.AdminSetVisibility(c)

		assert.Equal(t, http.StatusOK, w.Code)
		challenges.AssertExpectations(t)
	})
}

func TestScorePreview(t *testing.T) {
	// Arrange
	challenges := new(MockChallengeUseCase)
	h := NewChallengeHandler(challenges)
	challenges.On("ScorePreview", scoring.Config{Mode: entity.ScoringDynamic, BaseScore: 100, MinScore: 10, DecayFactor: 0.9}, 3).
		Return([]int{100, 90, 81}, nil)
	c, w := newTestGinContext(http.MethodPost, "/api/v1/admin/challenges/score-preview", map[string]interface{}{
		"scoring_mode": "dynamic", "base_score": 100, "min_score": 10, "decay_factor": 0.9, "solves": 3,
	})

	// Act
	h.ScorePreview(c)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"scores":[{"solve":1,"score":100},{"solve":2,"score":90},{"solve":3,"score":81}]}`, w.Body.String())
}

func TestPlayerGet_HiddenIsNotFound(t *testing.T) {
	challenges := new(MockChallengeUseCase)
	h := NewChallengeHandler(challenges)
	challenges.On("GetVisible", mock.Anything, uint(7), false, uint(9)).Return(nil, apperrors.ErrNotFound)
	c, w := newTestGinContext(http.MethodGet, "/api/v1/challenges/9", nil)
	asUser(c, 7, false)
	c.Set(ContextChallengeID, uint(9))

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlayerList(t *testing.T) {
	challenges := new(MockChallengeUseCase)
	h := NewChallengeHandler(challenges)
	challenges.On("ListVisible", mock.Anything, uint(7), false).Return([]service.ChallengeView{
		{ID: 1, Title: "Warmup", BaseScore: 50, CurrentScore: 50, IsSolved: true},
	}, nil)
	c, w := newTestGinContext(http.MethodGet, "/api/v1/challenges/", nil)
	asUser(c, 7, false)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_solved":true`)
}
