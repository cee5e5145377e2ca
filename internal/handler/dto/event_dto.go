package dto

import (
	"time"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/service"
)

// EventStatusResponse - публичное состояние соревнования
type EventStatusResponse struct {
	Status        entity.EventStatus `json:"status"`
	StartTime     *time.Time         `json:"start_time"`
	EndTime       *time.Time         `json:"end_time"`
	EventName     string             `json:"event_name"`
	EventTimezone string             `json:"event_timezone"`
	ServerTime    time.Time          `json:"server_time"`
}

// NewEventStatusResponse создает DTO из снимка состояния
func NewEventStatusResponse(s *service.EventSnapshot) EventStatusResponse {
	return EventStatusResponse{
		Status:        s.Status,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		EventName:     s.Name,
		EventTimezone: s.Timezone,
		ServerTime:    s.ServerTime,
	}
}

// EventConfigRequest - изменение настроек соревнования. Отсутствующие поля не меняются.
type EventConfigRequest struct {
	EventName                   *string             `json:"event_name"`
	EventTimezone               *string             `json:"event_timezone"`
	StartTime                   *time.Time          `json:"start_time"`
	EndTime                     *time.Time          `json:"end_time"`
	ClearStartTime              bool                `json:"clear_start_time"`
	ClearEndTime                bool                `json:"clear_end_time"`
	Status                      *entity.EventStatus `json:"status"`
	MaxSubmissionAttempts       *int                `json:"max_submission_attempts"`
	SubmissionTimeWindowSeconds *int                `json:"submission_time_window_seconds"`
	SubmissionBlockMinutes      *int                `json:"submission_block_minutes"`
	MaxTeamSize                 *int                `json:"max_team_size"`
}

// ToUpdate преобразует запрос во входные данные сервиса
func (r EventConfigRequest) ToUpdate() service.EventConfigUpdate {
	return service.EventConfigUpdate{
		EventName:                   r.EventName,
		EventTimezone:               r.EventTimezone,
		StartTime:                   r.StartTime,
		EndTime:                     r.EndTime,
		ClearStartTime:              r.ClearStartTime,
		ClearEndTime:                r.ClearEndTime,
		Status:                      r.Status,
		MaxSubmissionAttempts:       r.MaxSubmissionAttempts,
		SubmissionTimeWindowSeconds: r.SubmissionTimeWindowSeconds,
		SubmissionBlockMinutes:      r.SubmissionBlockMinutes,
		MaxTeamSize:                 r.MaxTeamSize,
	}
}
