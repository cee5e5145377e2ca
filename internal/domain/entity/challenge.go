package entity

import (
	"time"
)

// ScoringMode определяет способ начисления очков за задачу
type ScoringMode string

const (
	// ScoringStatic - фиксированная стоимость задачи
	ScoringStatic ScoringMode = "static"
	// ScoringDynamic - стоимость уменьшается с каждым новым решением
	ScoringDynamic ScoringMode = "dynamic"
)

// Difficulty - сложность задачи
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyInsane Difficulty = "insane"
)

// IsValid проверяет, что сложность входит в допустимый набор
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyInsane:
		return true
	}
	return false
}

// Challenge представляет задачу соревнования
type Challenge struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:100;not null" json:"title"`
	Description string     `gorm:"type:text;not null;default:''" json:"description"`
	Category    string     `gorm:"size:50;not null;default:'misc'" json:"category"`
	Difficulty  Difficulty `gorm:"size:20;not null;default:'easy'" json:"difficulty"`

	// FlagValue никогда не отдается игрокам
	FlagValue       string `gorm:"size:255;not null" json:"-"`
	IsCaseSensitive bool   `gorm:"not null" json:"is_case_sensitive"`

	ScoringMode ScoringMode `gorm:"size:20;not null;default:'static'" json:"scoring_mode"`
	BaseScore   int         `gorm:"not null" json:"base_score"`
	MinScore    int         `gorm:"not null;default:0" json:"min_score"`
	DecayFactor float64     `gorm:"not null;default:0" json:"decay_factor"`

	// AttemptLimit - максимум неверных попыток на команду (0 - без ограничений)
	AttemptLimit int `gorm:"not null;default:0" json:"attempt_limit"`

	IsDraft      bool       `gorm:"not null" json:"is_draft"`
	IsVisible    bool       `gorm:"not null;default:false" json:"is_visible"`
	VisibleFrom  *time.Time `json:"visible_from,omitempty"`
	VisibleUntil *time.Time `json:"visible_until,omitempty"`

	CreatedBy uint      `gorm:"not null;default:0" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Challenge) TableName() string {
	return "challenges"
}

// IsAvailableAt сообщает, видна ли задача игрокам в момент now
func (c *Challenge) IsAvailableAt(now time.Time) bool {
	if c.IsDraft || !c.IsVisible {
		return false
	}
	if c.VisibleFrom != nil && now.Before(*c.VisibleFrom) {
		return false
	}
	if c.VisibleUntil != nil && !now.Before(*c.VisibleUntil) {
		return false
	}
	return true
}

// ScoringChanged сообщает, отличаются ли параметры скоринга двух версий задачи
func (c *Challenge) ScoringChanged(other *Challenge) bool {
	return c.ScoringMode != other.ScoringMode ||
		c.BaseScore != other.BaseScore ||
		c.MinScore != other.MinScore ||
		c.DecayFactor != other.DecayFactor
}
