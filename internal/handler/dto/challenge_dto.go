package dto

import (
	"time"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/service"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoring"
)

// defaultPreviewSolves - длина кривой предпросмотра, если число решений не указано
const defaultPreviewSolves = 30

// ChallengeRequest - тело запроса на создание или изменение задачи
type ChallengeRequest struct {
	Title           string             `json:"title" binding:"required"`
	Description     string             `json:"description"`
	Category        string             `json:"category"`
	Difficulty      entity.Difficulty  `json:"difficulty"`
	Flag            string             `json:"flag"`
	IsCaseSensitive *bool              `json:"is_case_sensitive"`
	ScoringMode     entity.ScoringMode `json:"scoring_mode"`
	BaseScore       int                `json:"base_score" binding:"required"`
	MinScore        int                `json:"min_score"`
	DecayFactor     float64            `json:"decay_factor"`
	AttemptLimit    int                `json:"attempt_limit"`
	IsDraft         *bool              `json:"is_draft"`
	IsVisible       *bool              `json:"is_visible"`
	VisibleFrom     *time.Time         `json:"visible_from"`
	VisibleUntil    *time.Time         `json:"visible_until"`
}

// ToInput преобразует запрос во входные данные сервиса
func (r ChallengeRequest) ToInput() service.ChallengeInput {
	return service.ChallengeInput{
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		Difficulty:      r.Difficulty,
		Flag:            r.Flag,
		IsCaseSensitive: r.IsCaseSensitive,
		ScoringMode:     r.ScoringMode,
		BaseScore:       r.BaseScore,
		MinScore:        r.MinScore,
		DecayFactor:     r.DecayFactor,
		AttemptLimit:    r.AttemptLimit,
		IsDraft:         r.IsDraft,
		IsVisible:       r.IsVisible,
		VisibleFrom:     r.VisibleFrom,
		VisibleUntil:    r.VisibleUntil,
	}
}

// VisibilityRequest - публикация или скрытие задачи
type VisibilityRequest struct {
	IsVisible *bool `json:"is_visible" binding:"required"`
	IsDraft   *bool `json:"is_draft"`
}

// ScorePreviewRequest - параметры скоринга для предпросмотра кривой
type ScorePreviewRequest struct {
	ScoringMode entity.ScoringMode `json:"scoring_mode"`
	BaseScore   int                `json:"base_score" binding:"required"`
	MinScore    int                `json:"min_score"`
	DecayFactor float64            `json:"decay_factor"`
	Solves      int                `json:"solves"`
}

// Config возвращает параметры скоринга и длину кривой
func (r ScorePreviewRequest) Config() (scoring.Config, int) {
	mode := r.ScoringMode
	if mode == "" {
		mode = entity.ScoringStatic
	}
	n := r.Solves
	if n == 0 {
		n = defaultPreviewSolves
	}
	return scoring.Config{
		Mode:        mode,
		BaseScore:   r.BaseScore,
		MinScore:    r.MinScore,
		DecayFactor: r.DecayFactor,
	}, n
}

// ScorePreviewPoint - стоимость n-го решения
type ScorePreviewPoint struct {
	Solve int `json:"solve"`
	Score int `json:"score"`
}

// NewScorePreview нумерует кривую стоимости с единицы
func NewScorePreview(curve []int) []ScorePreviewPoint {
	points := make([]ScorePreviewPoint, len(curve))
	for i, score := range curve {
		points[i] = ScorePreviewPoint{Solve: i + 1, Score: score}
	}
	return points
}

// AdminChallengeResponse - задача для администратора вместе с флагом
type AdminChallengeResponse struct {
	service.AdminChallenge
	Flag string `json:"flag"`
}

// NewAdminChallengeResponse создает DTO задачи для администратора
func NewAdminChallengeResponse(c *service.AdminChallenge) AdminChallengeResponse {
	return AdminChallengeResponse{AdminChallenge: *c, Flag: c.FlagValue}
}

// NewAdminChallengeList создает список DTO задач для администратора
func NewAdminChallengeList(items []service.AdminChallenge) []AdminChallengeResponse {
	result := make([]AdminChallengeResponse, len(items))
	for i := range items {
		result[i] = NewAdminChallengeResponse(&items[i])
	}
	return result
}
