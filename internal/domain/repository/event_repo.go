package repository

import (
	"context"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// EventRepository определяет методы для работы с настройками соревнования
type EventRepository interface {
	// Get возвращает текущую конфигурацию или ErrNotFound
	Get(ctx context.Context) (*entity.EventConfig, error)
	Save(ctx context.Context, cfg *entity.EventConfig) error
	// UpdateStatus меняет статус, только если он все еще равен from
	UpdateStatus(ctx context.Context, id uint, from, to entity.EventStatus) error
}
