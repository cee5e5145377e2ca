package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
	"github.com/rabbitctf/rabbitctf-api/internal/pkg/testdb"
	"github.com/rabbitctf/rabbitctf-api/internal/repository/postgres"
	"github.com/rabbitctf/rabbitctf-api/internal/service/guard"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoring"
)

var testAdmin = Actor{UserID: 1, IsAdmin: true, IP: "127.0.0.1"}

func newTestChallengeService(t *testing.T) (*ChallengeService, *gorm.DB) {
	t.Helper()
	db := testdb.New(t)
	submissions := postgres.NewSubmissionRepo(db)
	svc := NewChallengeService(
		postgres.NewChallengeRepo(db),
		postgres.NewSolveRepo(db),
		submissions,
		postgres.NewTeamRepo(db),
		guard.NewGuard(submissions, postgres.NewBlockRepo(db), nil),
		NewAuditService(postgres.NewAuditRepo(db)),
	)
	svc.now = func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC) }
	return svc, db
}

func validInput() ChallengeInput {
	return ChallengeInput{
		Title:       "Rabbit Hole",
		Description: "Follow the white rabbit",
		Category:    "web",
		Difficulty:  entity.DifficultyMedium,
		Flag:        "CTF{white_rabbit}",
		ScoringMode: entity.ScoringDynamic,
		BaseScore:   500,
		MinScore:    100,
		DecayFactor: 0.95,
	}
}

func TestChallengeService_CreateDefaults(t *testing.T) {
	// Arrange
	svc, db := newTestChallengeService(t)

	// Act
	c, err := svc.Create(context.Background(), testAdmin, validInput())

	// Assert
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.True(t, c.IsDraft, "Новая задача - черновик")
	assert.False(t, c.IsVisible)
	assert.True(t, c.IsCaseSensitive)
	assert.Equal(t, uint(1), c.CreatedBy)

	var audit entity.AuditLog
	require.NoError(t, db.Where("action = ?", entity.AuditChallengeCreate).Take(&audit).Error)
	require.NotNil(t, audit.ResourceID)
	assert.Equal(t, c.ID, *audit.ResourceID)
}

func TestChallengeService_CreateStaticNormalizesDecay(t *testing.T) {
	svc, _ := newTestChallengeService(t)
	in := validInput()
	in.ScoringMode = entity.ScoringStatic
	in.DecayFactor = 5
	in.MinScore = 9999

	c, err := svc.Create(context.Background(), testAdmin, in)

	require.NoError(t, err)
	assert.Equal(t, 0, c.MinScore)
	assert.Zero(t, c.DecayFactor)
}

func TestChallengeService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *ChallengeInput)
	}{
		{"короткое название", func(in *ChallengeInput) { in.Title = "ab" }},
		{"пустой флаг", func(in *ChallengeInput) { in.Flag = "   " }},
		{"неизвестная сложность", func(in *ChallengeInput) { in.Difficulty = "legendary" }},
		{"decay равен 1", func(in *ChallengeInput) { in.DecayFactor = 1 }},
		{"min больше base", func(in *ChallengeInput) { in.MinScore = 600 }},
		{"отрицательный лимит", func(in *ChallengeInput) { in.AttemptLimit = -1 }},
		{"окно видимости наоборот", func(in *ChallengeInput) {
			from := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)
			until := from.Add(-time.Hour)
			in.VisibleFrom, in.VisibleUntil = &from, &until
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestChallengeService(t)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), testAdmin, in)

			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestChallengeService_UpdateLocksScoringAfterSolve(t *testing.T) {
	// Arrange
	svc, db := newTestChallengeService(t)
	members := testdb.Seed(t, db, "alpha")
	c, err := svc.Create(context.Background(), testAdmin, validInput())
	require.NoError(t, err)
	require.NoError(t, db.Create(&entity.Solve{
		TeamID: members[0].TeamID, ChallengeID: c.ID, Rank: 0, SubmissionID: 1,
		UserID: members[0].UserID, ScoreAwarded: 500, IsFirstBlood: true, SolvedAt: time.Now().UTC(),
	}).Error)

	// Act
	changed := validInput()
	changed.BaseScore = 400
	_, scoringErr := svc.Update(context.Background(), testAdmin, c.ID, changed)

	described := validInput()
	described.Description = "New description"
	described.Flag = ""
	updated, descErr := svc.Update(context.Background(), testAdmin, c.ID, described)

	// Assert
	assert.ErrorIs(t, scoringErr, ErrScoringLocked)
	assert.ErrorIs(t, scoringErr, apperrors.ErrConflict)
	require.NoError(t, descErr)
	assert.Equal(t, "New description", updated.Description)
	assert.Equal(t, "CTF{white_rabbit}", updated.FlagValue, "Пустой флаг при обновлении не меняет эталон")
}

func TestChallengeService_UpdateMissing(t *testing.T) {
	svc, _ := newTestChallengeService(t)

	_, err := svc.Update(context.Background(), testAdmin, 404, validInput())

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChallengeService_VisibilityAndPlayerViews(t *testing.T) {
	// Arrange
	svc, db := newTestChallengeService(t)
	members := testdb.Seed(t, db, "alpha")
	userID := members[0].UserID

	c, err := svc.Create(context.Background(), testAdmin, validInput())
	require.NoError(t, err)

	// Act & Assert: черновик не виден игроку
	views, err := svc.ListVisible(context.Background(), userID, false)
	require.NoError(t, err)
	assert.Empty(t, views)
	_, err = svc.GetVisible(context.Background(), userID, false, c.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Администратор видит все
	views, err = svc.ListVisible(context.Background(), userID, true)
	require.NoError(t, err)
	assert.Len(t, views, 1)

	// Публикуем
	notDraft := false
	_, err = svc.SetVisibility(context.Background(), testAdmin, c.ID, true, &notDraft)
	require.NoError(t, err)

	views, err = svc.ListVisible(context.Background(), userID, false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 500, views[0].CurrentScore)
	assert.False(t, views[0].IsSolved)

	view, err := svc.GetVisible(context.Background(), userID, false, c.ID)
	require.NoError(t, err)
	require.NotNil(t, view.AttemptsMade)
	assert.Equal(t, int64(0), *view.AttemptsMade)
	assert.Nil(t, view.AttemptsRemaining)
	assert.Nil(t, view.BlockedUntil)
}

func TestChallengeService_ScorePreview(t *testing.T) {
	svc, _ := newTestChallengeService(t)

	curve, err := svc.ScorePreview(scoring.Config{Mode: entity.ScoringDynamic, BaseScore: 100, MinScore: 10, DecayFactor: 0.9}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 90, 81}, curve)

	_, err = svc.ScorePreview(scoring.Config{Mode: entity.ScoringDynamic, BaseScore: 100, DecayFactor: 0.9}, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.ScorePreview(scoring.Config{Mode: entity.ScoringDynamic, BaseScore: 100, DecayFactor: 1.5}, 5)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
