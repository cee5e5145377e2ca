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
	"github.com/rabbitctf/rabbitctf-api/internal/service/flag"
	"github.com/rabbitctf/rabbitctf-api/internal/service/guard"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoring"
)

// maxPreviewSolves ограничивает длину кривой в предпросмотре скоринга
const maxPreviewSolves = 200

// ChallengeInput - данные задачи от администратора
type ChallengeInput struct {
	Title           string
	Description     string
	Category        string
	Difficulty      entity.Difficulty
	Flag            string
	IsCaseSensitive *bool
	ScoringMode     entity.ScoringMode
	BaseScore       int
	MinScore        int
	DecayFactor     float64
	AttemptLimit    int
	IsDraft         *bool
	IsVisible       *bool
	VisibleFrom     *time.Time
	VisibleUntil    *time.Time
}

// ChallengeView - задача глазами игрока
type ChallengeView struct {
	ID           uint               `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Category     string             `json:"category"`
	Difficulty   entity.Difficulty  `json:"difficulty"`
	ScoringMode  entity.ScoringMode `json:"scoring_mode"`
	BaseScore    int                `json:"base_score"`
	CurrentScore int                `json:"current_score"`
	SolveCount   int64              `json:"solve_count"`
	AttemptLimit int                `json:"attempt_limit"`
	IsSolved     bool               `json:"is_solved"`
	VisibleUntil *time.Time         `json:"visible_until,omitempty"`

	// Заполняются только для одной задачи
	BlockedUntil      *time.Time `json:"blocked_until"`
	AttemptsMade      *int64     `json:"attempts_made,omitempty"`
	AttemptsRemaining *int       `json:"attempts_remaining,omitempty"`
}

// AdminChallenge - задача с числом решений для панели администратора
type AdminChallenge struct {
	entity.Challenge
	SolveCount   int64 `json:"solve_count"`
	CurrentScore int   `json:"current_score"`
}

// ChallengeService управляет задачами
type ChallengeService struct {
	challengeRepo  repository.ChallengeRepository
	solveRepo      repository.SolveRepository
	submissionRepo repository.SubmissionRepository
	teamRepo       repository.TeamRepository
	guard          *guard.Guard
	audit          *AuditService
	now            func() time.Time
}

// NewChallengeService создает новый сервис задач
func NewChallengeService(
	challengeRepo repository.ChallengeRepository,
	solveRepo repository.SolveRepository,
	submissionRepo repository.SubmissionRepository,
	teamRepo repository.TeamRepository,
	guard *guard.Guard,
	audit *AuditService,
) *ChallengeService {
	return &ChallengeService{
		challengeRepo:  challengeRepo,
		solveRepo:      solveRepo,
		submissionRepo: submissionRepo,
		teamRepo:       teamRepo,
		guard:          guard,
		audit:          audit,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// validateInput проверяет поля задачи. requireFlag - флаг обязателен (создание).
func validateInput(in *ChallengeInput, requireFlag bool) error {
	in.Title = strings.TrimSpace(in.Title)
	if len(in.Title) < 3 || len(in.Title) > 100 {
		return fmt.Errorf("%w: title must be 3..100 characters", apperrors.ErrValidation)
	}
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = "misc"
	}
	if len(in.Category) > 50 {
		return fmt.Errorf("%w: category is too long", apperrors.ErrValidation)
	}
	if in.Difficulty == "" {
		in.Difficulty = entity.DifficultyEasy
	}
	if !in.Difficulty.IsValid() {
		return fmt.Errorf("%w: unknown difficulty %q", apperrors.ErrValidation, in.Difficulty)
	}

	in.Flag = strings.TrimSpace(in.Flag)
	if requireFlag && in.Flag == "" {
		return fmt.Errorf("%w: flag is required", apperrors.ErrValidation)
	}
	if len(in.Flag) > flag.MaxLength {
		return fmt.Errorf("%w: flag must be at most %d characters", apperrors.ErrValidation, flag.MaxLength)
	}

	if in.ScoringMode == "" {
		in.ScoringMode = entity.ScoringStatic
	}
	cfg := scoring.Config{Mode: in.ScoringMode, BaseScore: in.BaseScore, MinScore: in.MinScore, DecayFactor: in.DecayFactor}
	if err := scoring.Validate(cfg); err != nil {
		return err
	}
	cfg = scoring.Normalize(cfg)
	in.MinScore, in.DecayFactor = cfg.MinScore, cfg.DecayFactor

	if in.AttemptLimit < 0 {
		return fmt.Errorf("%w: attempt_limit must not be negative", apperrors.ErrValidation)
	}
	if in.VisibleFrom != nil && in.VisibleUntil != nil && !in.VisibleFrom.Before(*in.VisibleUntil) {
		return fmt.Errorf("%w: visible_from must be before visible_until", apperrors.ErrValidation)
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (in *ChallengeInput) apply(c *entity.Challenge) {
	c.Title = in.Title
	c.Description = in.Description
	c.Category = in.Category
	c.Difficulty = in.Difficulty
	if in.Flag != "" {
		c.FlagValue = in.Flag
	}
	c.IsCaseSensitive = boolOr(in.IsCaseSensitive, c.IsCaseSensitive)
	c.ScoringMode = in.ScoringMode
	c.BaseScore = in.BaseScore
	c.MinScore = in.MinScore
	c.DecayFactor = in.DecayFactor
	c.AttemptLimit = in.AttemptLimit
	c.IsDraft = boolOr(in.IsDraft, c.IsDraft)
	c.IsVisible = boolOr(in.IsVisible, c.IsVisible)
	c.VisibleFrom = utcPtr(in.VisibleFrom)
	c.VisibleUntil = utcPtr(in.VisibleUntil)
}

// Create создает задачу. По умолчанию задача - скрытый черновик с флагом, чувствительным к регистру.
func (s *ChallengeService) Create(ctx context.Context, actor Actor, in ChallengeInput) (*entity.Challenge, error) {
	if err := validateInput(&in, true); err != nil {
		return nil, err
	}

	challenge := &entity.Challenge{
		IsCaseSensitive: true,
		IsDraft:         true,
		CreatedBy:       actor.UserID,
	}
	in.apply(challenge)

	if err := s.challengeRepo.Create(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	s.audit.Record(ctx, actor, entity.AuditChallengeCreate, "challenge", &challenge.ID, map[string]interface{}{
		"title":        challenge.Title,
		"scoring_mode": challenge.ScoringMode,
		"base_score":   challenge.BaseScore,
	})
	log.Printf("[ChallengeService] Задача %d (%s) создана пользователем %d", challenge.ID, challenge.Title, actor.UserID)
	return challenge, nil
}

// Update заменяет поля задачи. Параметры скоринга нельзя менять после первого решения,
// иначе уже начисленные очки разойдутся с кривой.
func (s *ChallengeService) Update(ctx context.Context, actor Actor, id uint, in ChallengeInput) (*entity.Challenge, error) {
	if err := validateInput(&in, false); err != nil {
		return nil, err
	}

	challenge, err := s.challengeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *challenge
	in.apply(challenge)

	if challenge.ScoringChanged(&before) {
		// Проверка решений и запись - один запрос, решение не проскочит между ними
		updated, err := s.challengeRepo.UpdateIfUnsolved(ctx, challenge)
		if err != nil {
			return nil, fmt.Errorf("failed to update challenge: %w", err)
		}
		if !updated {
			return nil, ErrScoringLocked
		}
	} else if err := s.challengeRepo.Update(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to update challenge: %w", err)
	}

	s.audit.Record(ctx, actor, entity.AuditChallengeUpdate, "challenge", &challenge.ID, map[string]interface{}{
		"title":           challenge.Title,
		"scoring_changed": challenge.ScoringChanged(&before),
		"flag_changed":    challenge.FlagValue != before.FlagValue,
	})
	return challenge, nil
}

// SetVisibility публикует или скрывает задачу
func (s *ChallengeService) SetVisibility(ctx context.Context, actor Actor, id uint, isVisible bool, isDraft *bool) (*entity.Challenge, error) {
	challenge, err := s.challengeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	challenge.IsVisible = isVisible
	if isDraft != nil {
		challenge.IsDraft = *isDraft
	}
	if err := s.challengeRepo.Update(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to update challenge visibility: %w", err)
	}

	s.audit.Record(ctx, actor, entity.AuditChallengeVisibility, "challenge", &challenge.ID, map[string]interface{}{
		"is_visible": challenge.IsVisible,
		"is_draft":   challenge.IsDraft,
	})
	log.Printf("[ChallengeService] Видимость задачи %d: visible=%t draft=%t", id, challenge.IsVisible, challenge.IsDraft)
	return challenge, nil
}

// GetForAdmin возвращает задачу вместе с флагом и числом решений
func (s *ChallengeService) GetForAdmin(ctx context.Context, id uint) (*AdminChallenge, error) {
	challenge, err := s.challengeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.solveRepo.CountsByChallenge(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count solves: %w", err)
	}
	return toAdmin(*challenge, counts[id]), nil
}

// ListAll возвращает все задачи для администратора
func (s *ChallengeService) ListAll(ctx context.Context) ([]AdminChallenge, error) {
	challenges, err := s.challengeRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	counts, err := s.solveRepo.CountsByChallenge(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count solves: %w", err)
	}
	result := make([]AdminChallenge, 0, len(challenges))
	for _, c := range challenges {
		result = append(result, *toAdmin(c, counts[c.ID]))
	}
	return result, nil
}

func toAdmin(c entity.Challenge, solves int64) *AdminChallenge {
	return &AdminChallenge{
		Challenge:    c,
		SolveCount:   solves,
		CurrentScore: scoring.ScoreFor(scoring.FromChallenge(&c), int(solves)),
	}
}

// ScorePreview возвращает стоимость первых n решений для заданных параметров
func (s *ChallengeService) ScorePreview(cfg scoring.Config, n int) ([]int, error) {
	if n <= 0 || n > maxPreviewSolves {
		return nil, fmt.Errorf("%w: solves must be within 1..%d", apperrors.ErrValidation, maxPreviewSolves)
	}
	if err := scoring.Validate(cfg); err != nil {
		return nil, err
	}
	return scoring.Curve(scoring.Normalize(cfg), n), nil
}

// teamFor возвращает команду пользователя или 0, если ее нет
func (s *ChallengeService) teamFor(ctx context.Context, userID uint) (uint, error) {
	teamID, err := s.teamRepo.TeamIDForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to resolve team: %w", err)
	}
	return teamID, nil
}

// ListVisible возвращает задачи, доступные игроку сейчас
func (s *ChallengeService) ListVisible(ctx context.Context, userID uint, isAdmin bool) ([]ChallengeView, error) {
	var (
		challenges []entity.Challenge
		err        error
	)
	if isAdmin {
		challenges, err = s.challengeRepo.List(ctx)
	} else {
		challenges, err = s.challengeRepo.ListPublished(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}

	counts, err := s.solveRepo.CountsByChallenge(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count solves: %w", err)
	}

	solved := make(map[uint]bool)
	teamID, err := s.teamFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if teamID != 0 {
		teamSolves, err := s.solveRepo.ListByTeam(ctx, teamID)
		if err != nil {
			return nil, fmt.Errorf("failed to load team solves: %w", err)
		}
		for _, solve := range teamSolves {
			solved[solve.ChallengeID] = true
		}
	}

	now := s.now()
	views := make([]ChallengeView, 0, len(challenges))
	for i := range challenges {
		c := &challenges[i]
		if !isAdmin && !c.IsAvailableAt(now) {
			continue
		}
		views = append(views, newChallengeView(c, counts[c.ID], solved[c.ID]))
	}
	return views, nil
}

// GetVisible возвращает одну задачу с состоянием попыток команды игрока.
// Скрытая задача неотличима от несуществующей.
func (s *ChallengeService) GetVisible(ctx context.Context, userID uint, isAdmin bool, id uint) (*ChallengeView, error) {
	challenge, err := s.challengeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !isAdmin && !challenge.IsAvailableAt(now) {
		return nil, apperrors.ErrNotFound
	}

	counts, err := s.solveRepo.CountsByChallenge(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count solves: %w", err)
	}

	teamID, err := s.teamFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := newChallengeView(challenge, counts[id], false)
	if teamID == 0 {
		return &view, nil
	}

	view.IsSolved, err = s.solveRepo.Has(ctx, teamID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check solve: %w", err)
	}
	decision, err := s.guard.Check(ctx, teamID, id, challenge.AttemptLimit, now)
	if err != nil {
		return nil, err
	}
	made := decision.Incorrect
	view.AttemptsMade = &made
	if decision.Remaining >= 0 {
		remaining := decision.Remaining
		view.AttemptsRemaining = &remaining
	}
	if decision.State == guard.Blocked {
		until := decision.BlockedUntil
		view.BlockedUntil = &until
	}
	return &view, nil
}

func newChallengeView(c *entity.Challenge, solves int64, solved bool) ChallengeView {
	return ChallengeView{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		Category:     c.Category,
		Difficulty:   c.Difficulty,
		ScoringMode:  c.ScoringMode,
		BaseScore:    c.BaseScore,
		CurrentScore: scoring.ScoreFor(scoring.FromChallenge(c), int(solves)),
		SolveCount:   solves,
		AttemptLimit: c.AttemptLimit,
		IsSolved:     solved,
		VisibleUntil: c.VisibleUntil,
	}
}
