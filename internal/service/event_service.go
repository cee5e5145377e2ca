package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/domain/repository"
	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
	"github.com/rabbitctf/rabbitctf-api/internal/service/guard"
)

// EventSnapshot - состояние соревнования, прочитанное один раз на запрос
type EventSnapshot struct {
	Name       string
	Timezone   string
	Status     entity.EventStatus
	StartTime  *time.Time
	EndTime    *time.Time
	Policy     guard.Policy
	ServerTime time.Time
}

// IsActive сообщает, принимаются ли флаги
func (s *EventSnapshot) IsActive() bool {
	return s != nil && s.Status == entity.EventActive
}

// EventConfigUpdate - изменяемые администратором поля. nil означает "не менять".
type EventConfigUpdate struct {
	EventName                   *string
	EventTimezone               *string
	StartTime                   *time.Time
	EndTime                     *time.Time
	ClearStartTime              bool
	ClearEndTime                bool
	Status                      *entity.EventStatus
	MaxSubmissionAttempts       *int
	SubmissionTimeWindowSeconds *int
	SubmissionBlockMinutes      *int
	MaxTeamSize                 *int
}

// EventService управляет настройками и статусом соревнования
type EventService struct {
	eventRepo repository.EventRepository
	audit     *AuditService
	now       func() time.Time
}

// NewEventService создает новый сервис соревнования
func NewEventService(eventRepo repository.EventRepository, audit *AuditService) *EventService {
	return &EventService{
		eventRepo: eventRepo,
		audit:     audit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// load возвращает конфигурацию из БД или конфигурацию по умолчанию
func (s *EventService) load(ctx context.Context) (*entity.EventConfig, error) {
	cfg, err := s.eventRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return entity.DefaultEventConfig(), nil
		}
		return nil, fmt.Errorf("failed to load event config: %w", err)
	}
	return cfg, nil
}

// Snapshot вычисляет текущий статус соревнования. Переход по расписанию
// сохраняется в БД условным обновлением, поэтому конкурирующие запросы его не дублируют.
func (s *EventService) Snapshot(ctx context.Context) (*EventSnapshot, error) {
	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := cfg.EffectiveStatus(now)
	if status != cfg.Status && cfg.ID != 0 {
		if err := s.eventRepo.UpdateStatus(ctx, cfg.ID, cfg.Status, status); err != nil {
			log.Printf("[EventService] Не удалось сохранить переход статуса %s -> %s: %v", cfg.Status, status, err)
		} else {
			log.Printf("[EventService] Статус соревнования изменен по расписанию: %s -> %s", cfg.Status, status)
		}
	}

	return &EventSnapshot{
		Name:       cfg.EventName,
		Timezone:   cfg.EventTimezone,
		Status:     status,
		StartTime:  cfg.StartTime,
		EndTime:    cfg.EndTime,
		Policy:     guard.PolicyFromEvent(cfg),
		ServerTime: now,
	}, nil
}

// GetConfig возвращает полную конфигурацию для администратора
func (s *EventService) GetConfig(ctx context.Context) (*entity.EventConfig, error) {
	return s.load(ctx)
}

// UpdateConfig применяет изменения администратора и пишет запись аудита
func (s *EventService) UpdateConfig(ctx context.Context, actor Actor, upd EventConfigUpdate) (*entity.EventConfig, error) {
	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	before := *cfg

	if upd.EventName != nil {
		name := strings.TrimSpace(*upd.EventName)
		if name == "" || len(name) > 100 {
			return nil, fmt.Errorf("%w: event_name must be 1..100 characters", apperrors.ErrValidation)
		}
		cfg.EventName = name
	}
	if upd.EventTimezone != nil {
		if _, err := time.LoadLocation(*upd.EventTimezone); err != nil {
			return nil, fmt.Errorf("%w: unknown event_timezone %q", apperrors.ErrValidation, *upd.EventTimezone)
		}
		cfg.EventTimezone = *upd.EventTimezone
	}
	if upd.ClearStartTime {
		cfg.StartTime = nil
	} else if upd.StartTime != nil {
		t := upd.StartTime.UTC()
		cfg.StartTime = &t
	}
	if upd.ClearEndTime {
		cfg.EndTime = nil
	} else if upd.EndTime != nil {
		t := upd.EndTime.UTC()
		cfg.EndTime = &t
	}
	if cfg.StartTime != nil && cfg.EndTime != nil && !cfg.StartTime.Before(*cfg.EndTime) {
		return nil, fmt.Errorf("%w: start_time must be before end_time", apperrors.ErrValidation)
	}
	if upd.Status != nil {
		if !upd.Status.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *upd.Status)
		}
		cfg.Status = *upd.Status
	}

	positive := []struct {
		name  string
		value *int
		dest  *int
	}{
		{"max_submission_attempts", upd.MaxSubmissionAttempts, &cfg.MaxSubmissionAttempts},
		{"submission_time_window_seconds", upd.SubmissionTimeWindowSeconds, &cfg.SubmissionTimeWindowSeconds},
		{"submission_block_minutes", upd.SubmissionBlockMinutes, &cfg.SubmissionBlockMinutes},
		{"max_team_size", upd.MaxTeamSize, &cfg.MaxTeamSize},
	}
	for _, field := range positive {
		if field.value == nil {
			continue
		}
		if *field.value <= 0 {
			return nil, fmt.Errorf("%w: %s must be positive", apperrors.ErrValidation, field.name)
		}
		*field.dest = *field.value
	}

	cfg.UpdatedBy = actor.UserID
	if err := s.eventRepo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save event config: %w", err)
	}

	s.audit.Record(ctx, actor, entity.AuditEventConfigUpdate, "event_config", &cfg.ID, map[string]interface{}{
		"status_before": before.Status,
		"status_after":  cfg.Status,
		"start_time":    cfg.StartTime,
		"end_time":      cfg.EndTime,
	})
	log.Printf("[EventService] Настройки соревнования обновлены пользователем %d (статус %s)", actor.UserID, cfg.Status)
	return cfg, nil
}
