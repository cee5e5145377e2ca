package entity

import (
	"time"
)

// SubmissionBlock - временная блокировка сдачи флагов команды по задаче.
// Блокировка действует, пока now < BlockedUntil, отдельного снятия нет.
type SubmissionBlock struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TeamID       uint      `gorm:"not null;index:idx_blocks_team_challenge,priority:1" json:"team_id"`
	ChallengeID  uint      `gorm:"not null;index:idx_blocks_team_challenge,priority:2" json:"challenge_id"`
	BlockedUntil time.Time `gorm:"not null;index" json:"blocked_until"`
	Reason       string    `gorm:"size:255;not null;default:''" json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (SubmissionBlock) TableName() string {
	return "submission_blocks"
}

// IsActiveAt сообщает, действует ли блокировка в момент now
func (b *SubmissionBlock) IsActiveAt(now time.Time) bool {
	return b != nil && now.Before(b.BlockedUntil)
}
