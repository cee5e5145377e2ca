package service

import (
	"context"
	"encoding/json"
	"log"

	"gorm.io/datatypes"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/domain/repository"
)

// Actor - пользователь, выполняющий действие
type Actor struct {
	UserID  uint
	IsAdmin bool
	IP      string
}

// AuditService пишет журнал действий администраторов
type AuditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService создает новый сервис аудита
func NewAuditService(auditRepo repository.AuditRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

// Record сохраняет запись аудита. Ошибка записи не прерывает само действие, только логируется.
func (s *AuditService) Record(ctx context.Context, actor Actor, action, resourceType string, resourceID *uint, details map[string]interface{}) {
	if s == nil || s.auditRepo == nil {
		return
	}

	entry := &entity.AuditLog{
		UserID:       actor.UserID,
		Action:       action,
		ResourceType: resourceType,
		IPAddress:    actor.IP,
	}
	if resourceID != nil {
		id := *resourceID
		entry.ResourceID = &id
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			log.Printf("[AuditService] Не удалось сериализовать детали %s: %v", action, err)
		} else {
			entry.Details = datatypes.JSON(raw)
		}
	}

	if err := s.auditRepo.Create(ctx, entry); err != nil {
		log.Printf("[AuditService] Ошибка записи аудита %s (user %d): %v", action, actor.UserID, err)
	}
}

// List возвращает последние записи аудита
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]entity.AuditLog, error) {
	return s.auditRepo.List(ctx, limit, offset)
}
