package entity

import "time"

// Team - команда участников
type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	CaptainID uint      `gorm:"not null" json:"captain_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Team) TableName() string {
	return "teams"
}

// TeamMember - членство пользователя в команде (пользователь состоит не более чем в одной команде)
type TeamMember struct {
	UserID   uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	TeamID   uint      `gorm:"not null;index" json:"team_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// TableName определяет имя таблицы для GORM
func (TeamMember) TableName() string {
	return "team_members"
}
