package handler

import (
	"context"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/service"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoreboard"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoring"
)

// SubmissionUseCase - операции судьи и журнала попыток
type SubmissionUseCase interface {
	Submit(ctx context.Context, cmd service.SubmitCommand) (*service.SubmissionResult, error)
	ChallengeStatus(ctx context.Context, userID uint, isAdmin bool, challengeID uint) (*service.ChallengeStatus, error)
	MySubmissions(ctx context.Context, userID uint, limit, offset int) ([]entity.SubmissionDetail, error)
	TeamSubmissions(ctx context.Context, userID uint, limit, offset int) ([]entity.SubmissionDetail, error)
	FirstBloods(ctx context.Context, limit int) ([]entity.SolveDetail, error)
	SolveTimeline(ctx context.Context, limit int) ([]entity.SolveDetail, error)
	AdminAll(ctx context.Context, limit, offset int) ([]entity.SubmissionDetail, error)
	AdminByChallenge(ctx context.Context, challengeID uint, limit, offset int) ([]entity.SubmissionDetail, error)
	Stats(ctx context.Context, challengeID uint) (*entity.ChallengeStats, error)
}

// EventUseCase - состояние и настройки соревнования
type EventUseCase interface {
	Snapshot(ctx context.Context) (*service.EventSnapshot, error)
	GetConfig(ctx context.Context) (*entity.EventConfig, error)
	UpdateConfig(ctx context.Context, actor service.Actor, upd service.EventConfigUpdate) (*entity.EventConfig, error)
}

// ChallengeUseCase - управление задачами и их выдача игрокам
type ChallengeUseCase interface {
	Create(ctx context.Context, actor service.Actor, in service.ChallengeInput) (*entity.Challenge, error)
	Update(ctx context.Context, actor service.Actor, id uint, in service.ChallengeInput) (*entity.Challenge, error)
	SetVisibility(ctx context.Context, actor service.Actor, id uint, isVisible bool, isDraft *bool) (*entity.Challenge, error)
	GetForAdmin(ctx context.Context, id uint) (*service.AdminChallenge, error)
	ListAll(ctx context.Context) ([]service.AdminChallenge, error)
	ScorePreview(cfg scoring.Config, n int) ([]int, error)
	ListVisible(ctx context.Context, userID uint, isAdmin bool) ([]service.ChallengeView, error)
	GetVisible(ctx context.Context, userID uint, isAdmin bool, id uint) (*service.ChallengeView, error)
}

// ScoreboardUseCase - таблица результатов
type ScoreboardUseCase interface {
	Get(ctx context.Context) (*scoreboard.Board, error)
	Top(ctx context.Context, n int) ([]scoreboard.Row, error)
	TeamRow(ctx context.Context, teamID uint) (*scoreboard.Row, error)
}

// AuditRecorder пишет действия администраторов в журнал
type AuditRecorder interface {
	Record(ctx context.Context, actor service.Actor, action, resourceType string, resourceID *uint, details map[string]interface{})
	List(ctx context.Context, limit, offset int) ([]entity.AuditLog, error)
}
