package repository

import (
	"context"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// AuditRepository определяет методы журнала аудита
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditLog) error
	List(ctx context.Context, limit, offset int) ([]entity.AuditLog, error)
}
