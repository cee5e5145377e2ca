package repository

import (
	"context"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// ChallengeRepository определяет методы для работы с задачами
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *entity.Challenge) error
	Update(ctx context.Context, challenge *entity.Challenge) error
	// UpdateIfUnsolved сохраняет задачу одним условным UPDATE, только пока у нее нет решений.
	// false означает, что решение уже есть.
	UpdateIfUnsolved(ctx context.Context, challenge *entity.Challenge) (bool, error)
	GetByID(ctx context.Context, id uint) (*entity.Challenge, error)
	// List возвращает все задачи, включая черновики и скрытые
	List(ctx context.Context) ([]entity.Challenge, error)
	// ListPublished возвращает опубликованные задачи (без учета окна видимости)
	ListPublished(ctx context.Context) ([]entity.Challenge, error)
}
