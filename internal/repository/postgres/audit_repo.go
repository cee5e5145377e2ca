package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// AuditRepo реализует repository.AuditRepository
type AuditRepo struct {
	db *gorm.DB
}

// NewAuditRepo создает новый репозиторий журнала аудита
func NewAuditRepo(db *gorm.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Create добавляет запись в журнал
func (r *AuditRepo) Create(ctx context.Context, entry *entity.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List возвращает записи журнала, новые первыми
func (r *AuditRepo) List(ctx context.Context, limit, offset int) ([]entity.AuditLog, error) {
	var entries []entity.AuditLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}
