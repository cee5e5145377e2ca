package entity

import (
	"time"
)

// SubmissionStatus - итог обработки попытки сдачи флага
type SubmissionStatus string

const (
	StatusCorrect              SubmissionStatus = "correct"
	StatusIncorrect            SubmissionStatus = "incorrect"
	StatusBlocked              SubmissionStatus = "blocked"
	StatusAttemptLimitExceeded SubmissionStatus = "attempt_limit_exceeded"
	StatusEventNotActive       SubmissionStatus = "event_not_active"
	StatusNotFound             SubmissionStatus = "not_found"
)

// Submission - запись журнала попыток. Записи только добавляются.
type Submission struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	TeamID        uint      `gorm:"not null;index:idx_submissions_team_challenge,priority:1;uniqueIndex:idx_submissions_one_correct,where:is_correct = true" json:"team_id"`
	ChallengeID   uint      `gorm:"not null;index:idx_submissions_team_challenge,priority:2;uniqueIndex:idx_submissions_one_correct,where:is_correct = true" json:"challenge_id"`
	SubmittedFlag string    `gorm:"size:255;not null" json:"submitted_flag"`
	IsCorrect     bool      `gorm:"not null;default:false" json:"is_correct"`
	ScoreAwarded  int       `gorm:"not null;default:0" json:"score_awarded"`
	ClientIP      string    `gorm:"size:64;not null;default:''" json:"client_ip,omitempty"`
	SubmittedAt   time.Time `gorm:"not null;index" json:"submitted_at"`
}

// TableName определяет имя таблицы для GORM
func (Submission) TableName() string {
	return "submissions"
}

// Solve фиксирует засчитанное решение задачи командой.
// Первичный ключ (team_id, challenge_id) гарантирует не более одного зачета,
// уникальность (challenge_id, rank) - единственность каждого места, включая first blood.
type Solve struct {
	TeamID       uint      `gorm:"primaryKey;autoIncrement:false" json:"team_id"`
	ChallengeID  uint      `gorm:"primaryKey;autoIncrement:false;uniqueIndex:idx_solves_challenge_rank,priority:1" json:"challenge_id"`
	// Rank - число решений задачи до этого (0 - first blood)
	Rank         int       `gorm:"not null;uniqueIndex:idx_solves_challenge_rank,priority:2" json:"rank"`
	SubmissionID uint      `gorm:"not null;uniqueIndex" json:"submission_id"`
	UserID       uint      `gorm:"not null" json:"user_id"`
	ScoreAwarded int       `gorm:"not null" json:"score_awarded"`
	IsFirstBlood bool      `gorm:"not null;default:false" json:"is_first_blood"`
	SolvedAt     time.Time `gorm:"not null;index" json:"solved_at"`
}

// TableName определяет имя таблицы для GORM
func (Solve) TableName() string {
	return "solves"
}

// SolveDetail - решение с именами команды, пользователя и задачи (для выдачи наружу)
type SolveDetail struct {
	Solve
	TeamName       string `json:"team_name"`
	Username       string `json:"username"`
	ChallengeTitle string `json:"challenge_title"`
}

// SubmissionDetail - попытка с именами команды, пользователя и задачи
type SubmissionDetail struct {
	Submission
	TeamName       string `json:"team_name"`
	Username       string `json:"username"`
	ChallengeTitle string `json:"challenge_title"`
}

// ChallengeStats - агрегированная статистика попыток по задаче
type ChallengeStats struct {
	ChallengeID        uint    `json:"challenge_id"`
	TotalSubmissions   int64   `json:"total_submissions"`
	CorrectSubmissions int64   `json:"correct_submissions"`
	UniqueSolvers      int64   `json:"unique_solvers"`
	AverageAttempts    float64 `json:"average_attempts"`
	// FastestSolveMinutes - минуты от создания задачи до первого решения
	FastestSolveMinutes *int               `json:"fastest_solve_time"`
	RecentActivity      []SubmissionDetail `json:"recent_activity"`
}
