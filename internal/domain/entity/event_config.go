package entity

import (
	"time"
)

// EventStatus - состояние соревнования
type EventStatus string

const (
	EventNotStarted EventStatus = "not_started"
	EventActive     EventStatus = "active"
	EventPaused     EventStatus = "paused"
	EventFinished   EventStatus = "finished"
)

// IsValid проверяет, что статус входит в допустимый набор
func (s EventStatus) IsValid() bool {
	switch s {
	case EventNotStarted, EventActive, EventPaused, EventFinished:
		return true
	}
	return false
}

// Значения по умолчанию для защиты от перебора
const (
	DefaultMaxSubmissionAttempts = 5
	DefaultSubmissionWindowSec   = 60
	DefaultSubmissionBlockMin    = 5
	DefaultMaxTeamSize           = 4
)

// EventConfig - настройки соревнования (в таблице одна строка)
type EventConfig struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	EventName     string      `gorm:"size:100;not null;default:'RabbitCTF'" json:"event_name"`
	EventTimezone string      `gorm:"size:64;not null;default:'UTC'" json:"event_timezone"`
	StartTime     *time.Time  `json:"start_time"`
	EndTime       *time.Time  `json:"end_time"`
	Status        EventStatus `gorm:"size:20;not null;default:'not_started'" json:"status"`

	MaxSubmissionAttempts       int `gorm:"not null;default:5" json:"max_submission_attempts"`
	SubmissionTimeWindowSeconds int `gorm:"not null;default:60" json:"submission_time_window_seconds"`
	SubmissionBlockMinutes      int `gorm:"not null;default:5" json:"submission_block_minutes"`
	MaxTeamSize                 int `gorm:"not null;default:4" json:"max_team_size"`

	UpdatedBy uint      `gorm:"not null;default:0" json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (EventConfig) TableName() string {
	return "event_config"
}

// DefaultEventConfig возвращает конфигурацию для случая, когда в БД еще ничего нет
func DefaultEventConfig() *EventConfig {
	return &EventConfig{
		EventName:                   "RabbitCTF",
		EventTimezone:               "UTC",
		Status:                      EventNotStarted,
		MaxSubmissionAttempts:       DefaultMaxSubmissionAttempts,
		SubmissionTimeWindowSeconds: DefaultSubmissionWindowSec,
		SubmissionBlockMinutes:      DefaultSubmissionBlockMin,
		MaxTeamSize:                 DefaultMaxTeamSize,
	}
}

// EffectiveStatus вычисляет статус в момент now по расписанию.
// Пауза меняется только администратором и расписанием не снимается.
func (e *EventConfig) EffectiveStatus(now time.Time) EventStatus {
	switch e.Status {
	case EventPaused, EventFinished:
		return e.Status
	}
	if e.EndTime != nil && !now.Before(*e.EndTime) {
		return EventFinished
	}
	if e.Status == EventNotStarted && e.StartTime != nil && !now.Before(*e.StartTime) {
		return EventActive
	}
	return e.Status
}
