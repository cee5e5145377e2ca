package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Действия, попадающие в журнал аудита
const (
	AuditChallengeCreate     = "challenge.create"
	AuditChallengeUpdate     = "challenge.update"
	AuditChallengeVisibility = "challenge.visibility"
	AuditEventConfigUpdate   = "event_config.update"
	AuditScoreboardExport    = "scoreboard.export"
)

// AuditLog - запись о действии администратора
type AuditLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"not null;index" json:"user_id"`
	Action       string         `gorm:"size:100;not null;index" json:"action"`
	ResourceType string         `gorm:"size:50;not null" json:"resource_type"`
	ResourceID   *uint          `json:"resource_id,omitempty"`
	Details      datatypes.JSON `json:"details"`
	IPAddress    string         `gorm:"size:64;not null;default:''" json:"ip_address"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}
