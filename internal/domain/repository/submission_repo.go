package repository

import (
	"context"
	"time"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"gorm.io/gorm"
)

// SubmissionRepository - журнал попыток. Только добавление и чтение.
type SubmissionRepository interface {
	// Create добавляет попытку в журнал в рамках транзакции tx.
	// Повторная верная попытка той же команды возвращает ErrConflict.
	Create(tx *gorm.DB, submission *entity.Submission) error
	CountIncorrect(ctx context.Context, teamID, challengeID uint) (int64, error)
	CountIncorrectSince(tx *gorm.DB, teamID, challengeID uint, since time.Time) (int64, error)
	LastAttemptAt(ctx context.Context, teamID, challengeID uint) (*time.Time, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]entity.SubmissionDetail, error)
	ListByTeam(ctx context.Context, teamID uint, limit, offset int) ([]entity.SubmissionDetail, error)
	ListByChallenge(ctx context.Context, challengeID uint, limit, offset int) ([]entity.SubmissionDetail, error)
	ListAll(ctx context.Context, limit, offset int) ([]entity.SubmissionDetail, error)
	Stats(ctx context.Context, challenge *entity.Challenge) (*entity.ChallengeStats, error)
}

// SolveRepository определяет методы для работы с засчитанными решениями
type SolveRepository interface {
	// CountByChallenge возвращает число решений задачи (ранг следующего решения)
	CountByChallenge(tx *gorm.DB, challengeID uint) (int64, error)
	// Create вставляет решение. false означает конфликт уникальности (команда или ранг уже заняты).
	Create(tx *gorm.DB, solve *entity.Solve) (bool, error)
	Exists(tx *gorm.DB, teamID, challengeID uint) (bool, error)
	Has(ctx context.Context, teamID, challengeID uint) (bool, error)
	// ListAll возвращает все решения в хронологическом порядке
	ListAll(ctx context.Context) ([]entity.Solve, error)
	ListDetailed(ctx context.Context) ([]entity.SolveDetail, error)
	ListFirstBloods(ctx context.Context) ([]entity.SolveDetail, error)
	ListByTeam(ctx context.Context, teamID uint) ([]entity.Solve, error)
	CountsByChallenge(ctx context.Context) (map[uint]int64, error)
}

// BlockRepository определяет методы для работы с блокировками сдачи флагов
type BlockRepository interface {
	Create(tx *gorm.DB, block *entity.SubmissionBlock) error
	// Latest возвращает блокировку с наибольшим BlockedUntil или ErrNotFound
	Latest(ctx context.Context, teamID, challengeID uint) (*entity.SubmissionBlock, error)
}
