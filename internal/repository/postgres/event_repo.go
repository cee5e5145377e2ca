package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// EventRepo реализует repository.EventRepository
type EventRepo struct {
	db *gorm.DB
}

// NewEventRepo создает новый репозиторий настроек соревнования
func NewEventRepo(db *gorm.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Get возвращает единственную строку настроек
func (r *EventRepo) Get(ctx context.Context) (*entity.EventConfig, error) {
	var cfg entity.EventConfig
	if err := r.db.WithContext(ctx).Order("id ASC").Take(&cfg).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &cfg, nil
}

// Save создает или обновляет настройки
func (r *EventRepo) Save(ctx context.Context, cfg *entity.EventConfig) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}

// UpdateStatus переводит статус from -> to. Если статус уже изменен кем-то другим, ничего не делает.
func (r *EventRepo) UpdateStatus(ctx context.Context, id uint, from, to entity.EventStatus) error {
	return r.db.WithContext(ctx).
		Model(&entity.EventConfig{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to).Error
}
