package repository

import (
	"context"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// TeamRepository определяет методы чтения команд и участников
type TeamRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Team, error)
	// TeamIDForUser возвращает команду пользователя или ErrNotFound
	TeamIDForUser(ctx context.Context, userID uint) (uint, error)
	List(ctx context.Context) ([]entity.Team, error)
}
