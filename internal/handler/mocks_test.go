package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/service"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoreboard"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoring"
)

// MockSubmissionUseCase - мок судьи
type MockSubmissionUseCase struct {
	mock.Mock
}

func (m *MockSubmissionUseCase) Submit(ctx context.Context, cmd service.SubmitCommand) (*service.SubmissionResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SubmissionResult), args.Error(1)
}

func (m *MockSubmissionUseCase) ChallengeStatus(ctx context.Context, userID uint, isAdmin bool, challengeID uint) (*service.ChallengeStatus, error) {
	args := m.Called(ctx, userID, isAdmin, challengeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChallengeStatus), args.Error(1)
}

func (m *MockSubmissionUseCase) MySubmissions(ctx context.Context, userID uint, limit, offset int) ([]entity.SubmissionDetail, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]entity.SubmissionDetail), args.Error(1)
}

func (m *MockSubmissionUseCase) TeamSubmissions(ctx context.Context, userID uint, limit, offset int) ([]entity.SubmissionDetail, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]entity.SubmissionDetail), args.Error(1)
}

func (m *MockSubmissionUseCase) FirstBloods(ctx context.Context, limit int) ([]entity.SolveDetail, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]entity.SolveDetail), args.Error(1)
}

func (m *MockSubmissionUseCase) SolveTimeline(ctx context.Context, limit int) ([]entity.SolveDetail, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]entity.SolveDetail), args.Error(1)
}

func (m *MockSubmissionUseCase) AdminAll(ctx context.Context, limit, offset int) ([]entity.SubmissionDetail, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]entity.SubmissionDetail), args.Error(1)
}

func (m *MockSubmissionUseCase) AdminByChallenge(ctx context.Context, challengeID uint, limit, offset int) ([]entity.SubmissionDetail, error) {
	args := m.Called(ctx, challengeID, limit, offset)
	return args.Get(0).([]entity.SubmissionDetail), args.Error(1)
}

func (m *MockSubmissionUseCase) Stats(ctx context.Context, challengeID uint) (*entity.ChallengeStats, error) {
	args := m.Called(ctx, challengeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ChallengeStats), args.Error(1)
}

// MockEventUseCase - мок сервиса соревнования
type MockEventUseCase struct {
	mock.Mock
}

func (m *MockEventUseCase) Snapshot(ctx context.Context) (*service.EventSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EventSnapshot), args.Error(1)
}

func (m *MockEventUseCase) GetConfig(ctx context.Context) (*entity.EventConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EventConfig), args.Error(1)
}

func (m *MockEventUseCase) UpdateConfig(ctx context.Context, actor service.Actor, upd service.EventConfigUpdate) (*entity.EventConfig, error) {
	args := m.Called(ctx, actor, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EventConfig), args.Error(1)
}

// MockChallengeUseCase - мок сервиса задач
type MockChallengeUseCase struct {
	mock.Mock
}

func (m *MockChallengeUseCase) Create(ctx context.Context, actor service.Actor, in service.ChallengeInput) (*entity.Challenge, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Challenge), args.Error(1)
}

func (m *MockChallengeUseCase) Update(ctx context.Context, actor service.Actor, id uint, in service.ChallengeInput) (*entity.Challenge, error) {
	args := m.Called(ctx, actor, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Challenge), args.Error(1)
}

func (m *MockChallengeUseCase) SetVisibility(ctx context.Context, actor service.Actor, id uint, isVisible bool, isDraft *bool) (*entity.Challenge, error) {
	args := m.Called(ctx, actor, id, isVisible, isDraft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Challenge), args.Error(1)
}

func (m *MockChallengeUseCase) GetForAdmin(ctx context.Context, id uint) (*service.AdminChallenge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AdminChallenge), args.Error(1)
}

func (m *MockChallengeUseCase) ListAll(ctx context.Context) ([]service.AdminChallenge, error) {
	args := m.Called(ctx)
	return args.Get(0).([]service.AdminChallenge), args.Error(1)
}

func (m *MockChallengeUseCase) ScorePreview(cfg scoring.Config, n int) ([]int, error) {
	args := m.Called(cfg, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockChallengeUseCase) ListVisible(ctx context.Context, userID uint, isAdmin bool) ([]service.ChallengeView, error) {
	args := m.Called(ctx, userID, isAdmin)
	return args.Get(0).([]service.ChallengeView), args.Error(1)
}

func (m *MockChallengeUseCase) GetVisible(ctx context.Context, userID uint, isAdmin bool, id uint) (*service.ChallengeView, error) {
	args := m.Called(ctx, userID, isAdmin, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChallengeView), args.Error(1)
}

// MockScoreboardUseCase - мок таблицы результатов
type MockScoreboardUseCase struct {
	mock.Mock
}

func (m *MockScoreboardUseCase) Get(ctx context.Context) (*scoreboard.Board, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scoreboard.Board), args.Error(1)
}

func (m *MockScoreboardUseCase) Top(ctx context.Context, n int) ([]scoreboard.Row, error) {
	args := m.Called(ctx, n)
	return args.Get(0).([]scoreboard.Row), args.Error(1)
}

func (m *MockScoreboardUseCase) TeamRow(ctx context.Context, teamID uint) (*scoreboard.Row, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scoreboard.Row), args.Error(1)
}

// MockAuditRecorder - мок журнала аудита
type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) Record(ctx context.Context, actor service.Actor, action, resourceType string, resourceID *uint, details map[string]interface{}) {
	m.Called(ctx, actor, action, resourceType, resourceID, details)
}

func (m *MockAuditRecorder) List(ctx context.Context, limit, offset int) ([]entity.AuditLog, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]entity.AuditLog), args.Error(1)
}
