package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/domain/repository"
	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
	"github.com/rabbitctf/rabbitctf-api/internal/service/flag"
	"github.com/rabbitctf/rabbitctf-api/internal/service/guard"
	"github.com/rabbitctf/rabbitctf-api/internal/service/lock"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoring"
	"github.com/rabbitctf/rabbitctf-api/internal/websocket"
)

// maxAwardAttempts - сколько раз повторяется зачет, если ранг заняла другая команда
const maxAwardAttempts = 5

// errRollback откатывает транзакцию без ошибки для вызывающего
var errRollback = errors.New("rollback")

// FeedBroadcaster рассылает события в ленту соревнования
type FeedBroadcaster interface {
	BroadcastEvent(eventType string, data interface{}) error
}

// ScoreboardInvalidator сбрасывает кеш таблицы результатов
type ScoreboardInvalidator interface {
	Invalidate(ctx context.Context)
}

// SubmitCommand - попытка сдачи флага
type SubmitCommand struct {
	UserID      uint
	IsAdmin     bool
	ChallengeID uint
	Flag        string
	ClientIP    string
	// Event - состояние соревнования, прочитанное вызывающим один раз на запрос
	Event *EventSnapshot
}

// SubmissionResult - итог попытки. Отказы по правилам соревнования - это результат, а не ошибка.
type SubmissionResult struct {
	Status            entity.SubmissionStatus `json:"status"`
	IsCorrect         bool                    `json:"is_correct"`
	ScoreAwarded      int                     `json:"score_awarded"`
	Message           string                  `json:"message"`
	IsFirstBlood      bool                    `json:"is_first_blood"`
	AlreadySolved     bool                    `json:"already_solved"`
	BlockedUntil      *time.Time              `json:"blocked_until"`
	AttemptsRemaining *int                    `json:"attempts_remaining"`
	Rank              *int                    `json:"rank,omitempty"`
}

// ChallengeStatus - состояние попыток команды по задаче
type ChallengeStatus struct {
	ChallengeID       uint       `json:"challenge_id"`
	AttemptsMade      int64      `json:"attempts_made"`
	AttemptsRemaining *int       `json:"attempts_remaining"`
	AttemptLimit      int        `json:"attempt_limit"`
	IsBlocked         bool       `json:"is_blocked"`
	BlockedUntil      *time.Time `json:"blocked_until"`
	HasSolved         bool       `json:"has_solved"`
	LastAttemptAt     *time.Time `json:"last_attempt_at"`
}

// SubmissionService принимает флаги и отдает историю попыток
type SubmissionService struct {
	db             *gorm.DB
	challengeRepo  repository.ChallengeRepository
	submissionRepo repository.SubmissionRepository
	solveRepo      repository.SolveRepository
	teamRepo       repository.TeamRepository
	guard          *guard.Guard
	locker         lock.Locker
	scoreboard     ScoreboardInvalidator
	feed           FeedBroadcaster
	now            func() time.Time
}

// NewSubmissionService создает новый сервис попыток. scoreboard и feed могут быть nil.
func NewSubmissionService(
	db *gorm.DB,
	challengeRepo repository.ChallengeRepository,
	submissionRepo repository.SubmissionRepository,
	solveRepo repository.SolveRepository,
	teamRepo repository.TeamRepository,
	guard *guard.Guard,
	locker lock.Locker,
	scoreboard ScoreboardInvalidator,
	feed FeedBroadcaster,
) *SubmissionService {
	return &SubmissionService{
		db:             db,
		challengeRepo:  challengeRepo,
		submissionRepo: submissionRepo,
		solveRepo:      solveRepo,
		teamRepo:       teamRepo,
		guard:          guard,
		locker:         locker,
		scoreboard:     scoreboard,
		feed:           feed,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func intPtr(v int) *int {
	return &v
}

func notFoundResult() *SubmissionResult {
	return &SubmissionResult{Status: entity.StatusNotFound, Message: "Challenge not found"}
}

func alreadySolvedResult() *SubmissionResult {
	return &SubmissionResult{
		Status:        entity.StatusCorrect,
		IsCorrect:     true,
		AlreadySolved: true,
		Message:       "Your team has already solved this challenge",
	}
}

// resolveTeam возвращает команду пользователя или ErrNoTeam
func (s *SubmissionService) resolveTeam(ctx context.Context, userID uint) (uint, error) {
	teamID, err := s.teamRepo.TeamIDForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, ErrNoTeam
		}
		return 0, fmt.Errorf("failed to resolve team: %w", err)
	}
	return teamID, nil
}

// Submit проверяет флаг. Проверки идут по порядку, и ни одна не пишет в журнал, пока не пройдены предыдущие.
func (s *SubmissionService) Submit(ctx context.Context, cmd SubmitCommand) (*SubmissionResult, error) {
	if strings.TrimSpace(cmd.Flag) == "" {
		return nil, fmt.Errorf("%w: flag must not be empty", apperrors.ErrValidation)
	}
	if len(cmd.Flag) > flag.MaxLength {
		return nil, fmt.Errorf("%w: flag must be at most %d characters", apperrors.ErrValidation, flag.MaxLength)
	}
	teamID, err := s.resolveTeam(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	if !cmd.Event.IsActive() {
		return &SubmissionResult{Status: entity.StatusEventNotActive, Message: "The event is not active"}, nil
	}

	challenge, err := s.challengeRepo.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return notFoundResult(), nil
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if !cmd.IsAdmin && !challenge.IsAvailableAt(s.now()) {
		return notFoundResult(), nil
	}

	unlock, err := s.locker.Lock(ctx, lock.PairKey(teamID, challenge.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire submission lock: %w", err)
	}
	defer unlock()

	now := s.now()
	decision, err := s.guard.Check(ctx, teamID, challenge.ID, challenge.AttemptLimit, now)
	if err != nil {
		return nil, err
	}
	switch decision.State {
	case guard.Locked:
		return &SubmissionResult{
			Status:            entity.StatusAttemptLimitExceeded,
			Message:           "Attempt limit exceeded for this challenge",
			AttemptsRemaining: intPtr(0),
		}, nil
	case guard.Blocked:
		until := decision.BlockedUntil.UTC()
		return &SubmissionResult{
			Status:       entity.StatusBlocked,
			Message:      fmt.Sprintf("Too many incorrect attempts. Try again after %s", until.Format(time.RFC3339)),
			BlockedUntil: &until,
		}, nil
	}

	solved, err := s.solveRepo.Has(ctx, teamID, challenge.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check solve: %w", err)
	}
	if solved {
		return alreadySolvedResult(), nil
	}

	if !flag.Match(cmd.Flag, challenge.FlagValue, challenge.IsCaseSensitive) {
		return s.recordIncorrect(ctx, cmd, teamID, challenge, decision, now)
	}
	return s.recordCorrect(ctx, cmd, teamID, challenge)
}

// recordIncorrect пишет неверную попытку и, если нужно, блокировку в одной транзакции
func (s *SubmissionService) recordIncorrect(ctx context.Context, cmd SubmitCommand, teamID uint, challenge *entity.Challenge, decision guard.Decision, now time.Time) (*SubmissionResult, error) {
	var block *entity.SubmissionBlock
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission := &entity.Submission{
			UserID:        cmd.UserID,
			TeamID:        teamID,
			ChallengeID:   challenge.ID,
			SubmittedFlag: cmd.Flag,
			IsCorrect:     false,
			ClientIP:      cmd.ClientIP,
			SubmittedAt:   now,
		}
		if err := s.submissionRepo.Create(tx, submission); err != nil {
			return fmt.Errorf("failed to record submission: %w", err)
		}
		var err error
		block, err = s.guard.AfterIncorrect(tx, teamID, challenge.ID, cmd.Event.Policy, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.guard.Remember(ctx, block, now)

	result := &SubmissionResult{
		Status:  entity.StatusIncorrect,
		Message: "Incorrect flag",
	}
	if remaining := guard.Remaining(decision.Incorrect+1, challenge.AttemptLimit); remaining >= 0 {
		result.AttemptsRemaining = intPtr(remaining)
	}
	if block != nil {
		until := block.BlockedUntil.UTC()
		result.BlockedUntil = &until
		result.Message = fmt.Sprintf("Incorrect flag. Too many attempts, submissions are blocked until %s", until.Format(time.RFC3339))
		log.Printf("[SubmissionService] Команда %d заблокирована по задаче %d до %s", teamID, challenge.ID, until.Format(time.RFC3339))
	}
	return result, nil
}

// recordCorrect засчитывает решение. Уникальность зачета и мест обеспечивается ограничениями БД:
// конфликт по команде означает повторное решение, конфликт по рангу - повтор с новым рангом.
// Время решения берется заново на каждой попытке, чтобы больший ранг не получил более раннее время.
func (s *SubmissionService) recordCorrect(ctx context.Context, cmd SubmitCommand, teamID uint, challenge *entity.Challenge) (*SubmissionResult, error) {
	cfg := scoring.FromChallenge(challenge)

	for attempt := 1; attempt <= maxAwardAttempts; attempt++ {
		now := s.now()
		var (
			solve         *entity.Solve
			alreadySolved bool
			rankTaken     bool
		)

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			count, err := s.solveRepo.CountByChallenge(tx, challenge.ID)
			if err != nil {
				return fmt.Errorf("failed to count solves: %w", err)
			}
			rank := int(count)
			score := scoring.ScoreFor(cfg, rank)

			submission := &entity.Submission{
				UserID:        cmd.UserID,
				TeamID:        teamID,
				ChallengeID:   challenge.ID,
				SubmittedFlag: cmd.Flag,
				IsCorrect:     true,
				ScoreAwarded:  score,
				ClientIP:      cmd.ClientIP,
				SubmittedAt:   now,
			}
			if err := s.submissionRepo.Create(tx, submission); err != nil {
				if errors.Is(err, apperrors.ErrConflict) {
					alreadySolved = true
					return errRollback
				}
				return fmt.Errorf("failed to record submission: %w", err)
			}

			candidate := &entity.Solve{
				TeamID:       teamID,
				ChallengeID:  challenge.ID,
				Rank:         rank,
				SubmissionID: submission.ID,
				UserID:       cmd.UserID,
				ScoreAwarded: score,
				IsFirstBlood: rank == 0,
				SolvedAt:     now,
			}
			created, err := s.solveRepo.Create(tx, candidate)
			if err != nil {
				return fmt.Errorf("failed to record solve: %w", err)
			}
			if !created {
				exists, err := s.solveRepo.Exists(tx, teamID, challenge.ID)
				if err != nil {
					return fmt.Errorf("failed to check solve: %w", err)
				}
				if exists {
					alreadySolved = true
				} else {
					rankTaken = true
				}
				return errRollback
			}
			solve = candidate
			return nil
		})
		if err != nil && !errors.Is(err, errRollback) {
			return nil, err
		}

		switch {
		case alreadySolved:
			return alreadySolvedResult(), nil
		case rankTaken:
			log.Printf("[SubmissionService] Ранг для задачи %d занят другой командой, повтор %d/%d", challenge.ID, attempt, maxAwardAttempts)
			continue
		}

		s.afterSolve(ctx, challenge, solve)

		message := "Correct flag!"
		if solve.IsFirstBlood {
			message = "Correct flag! First blood!"
		}
		return &SubmissionResult{
			Status:       entity.StatusCorrect,
			IsCorrect:    true,
			ScoreAwarded: solve.ScoreAwarded,
			Message:      message,
			IsFirstBlood: solve.IsFirstBlood,
			Rank:         intPtr(solve.Rank + 1),
		}, nil
	}

	return nil, fmt.Errorf("%w: could not assign a solve rank for challenge %d", apperrors.ErrConflict, challenge.ID)
}

// afterSolve сбрасывает кеш таблицы и рассылает события. Ошибки только логируются.
func (s *SubmissionService) afterSolve(ctx context.Context, challenge *entity.Challenge, solve *entity.Solve) {
	log.Printf("[SubmissionService] Команда %d решила задачу %d (место %d, %d очков)", solve.TeamID, challenge.ID, solve.Rank+1, solve.ScoreAwarded)

	if s.scoreboard != nil {
		s.scoreboard.Invalidate(ctx)
	}
	if s.feed == nil {
		return
	}

	teamName := ""
	if team, err := s.teamRepo.GetByID(ctx, solve.TeamID); err == nil {
		teamName = team.Name
	} else {
		log.Printf("[SubmissionService] Не удалось получить команду %d для события: %v", solve.TeamID, err)
	}

	payload := websocket.SolvePayload{
		TeamID:         solve.TeamID,
		TeamName:       teamName,
		ChallengeID:    challenge.ID,
		ChallengeTitle: challenge.Title,
		Category:       challenge.Category,
		ScoreAwarded:   solve.ScoreAwarded,
		Rank:           solve.Rank + 1,
		IsFirstBlood:   solve.IsFirstBlood,
		SolvedAt:       solve.SolvedAt,
	}
	if err := s.feed.BroadcastEvent(websocket.EventSolveNew, payload); err != nil {
		log.Printf("[SubmissionService] Ошибка отправки %s: %v", websocket.EventSolveNew, err)
	}
	if solve.IsFirstBlood {
		if err := s.feed.BroadcastEvent(websocket.EventFirstBlood, payload); err != nil {
			log.Printf("[SubmissionService] Ошибка отправки %s: %v", websocket.EventFirstBlood, err)
		}
	}
	if err := s.feed.BroadcastEvent(websocket.EventScoreboardUpdated, websocket.ScoreboardPayload{UpdatedAt: solve.SolvedAt}); err != nil {
		log.Printf("[SubmissionService] Ошибка отправки %s: %v", websocket.EventScoreboardUpdated, err)
	}
}

// ChallengeStatus возвращает состояние попыток команды пользователя по задаче
func (s *SubmissionService) ChallengeStatus(ctx context.Context, userID uint, isAdmin bool, challengeID uint) (*ChallengeStatus, error) {
	teamID, err := s.resolveTeam(ctx, userID)
	if err != nil {
		return nil, err
	}
	challenge, err := s.challengeRepo.GetByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !isAdmin && !challenge.IsAvailableAt(now) {
		return nil, apperrors.ErrNotFound
	}

	decision, err := s.guard.Check(ctx, teamID, challengeID, challenge.AttemptLimit, now)
	if err != nil {
		return nil, err
	}
	solved, err := s.solveRepo.Has(ctx, teamID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check solve: %w", err)
	}
	last, err := s.submissionRepo.LastAttemptAt(ctx, teamID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last attempt: %w", err)
	}

	status := &ChallengeStatus{
		ChallengeID:   challengeID,
		AttemptsMade:  decision.Incorrect,
		AttemptLimit:  challenge.AttemptLimit,
		IsBlocked:     decision.State != guard.Open,
		HasSolved:     solved,
		LastAttemptAt: last,
	}
	if decision.Remaining >= 0 {
		status.AttemptsRemaining = intPtr(decision.Remaining)
	}
	if decision.State == guard.Blocked {
		until := decision.BlockedUntil.UTC()
		status.BlockedUntil = &until
	}
	return status, nil
}

// MySubmissions возвращает попытки пользователя, новые первыми
func (s *SubmissionService) MySubmissions(ctx context.Context, userID uint, limit, offset int) ([]entity.SubmissionDetail, error) {
	return s.submissionRepo.ListByUser(ctx, userID, limit, offset)
}

// TeamSubmissions возвращает попытки команды пользователя
func (s *SubmissionService) TeamSubmissions(ctx context.Context, userID uint, limit, offset int) ([]entity.SubmissionDetail, error) {
	teamID, err := s.resolveTeam(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.submissionRepo.ListByTeam(ctx, teamID, limit, offset)
}

// newestFirst разворачивает хронологический список и обрезает его до limit
func newestFirst(rows []entity.SolveDetail, limit int) []entity.SolveDetail {
	out := make([]entity.SolveDetail, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, rows[i])
	}
	return out
}

// FirstBloods возвращает первые решения задач, новые первыми
func (s *SubmissionService) FirstBloods(ctx context.Context, limit int) ([]entity.SolveDetail, error) {
	rows, err := s.solveRepo.ListFirstBloods(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list first bloods: %w", err)
	}
	return newestFirst(rows, limit), nil
}

// SolveTimeline возвращает последние засчитанные решения, новые первыми
func (s *SubmissionService) SolveTimeline(ctx context.Context, limit int) ([]entity.SolveDetail, error) {
	rows, err := s.solveRepo.ListDetailed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list solves: %w", err)
	}
	return newestFirst(rows, limit), nil
}

// AdminAll возвращает все попытки вместе с присланными флагами
func (s *SubmissionService) AdminAll(ctx context.Context, limit, offset int) ([]entity.SubmissionDetail, error) {
	return s.submissionRepo.ListAll(ctx, limit, offset)
}

// AdminByChallenge возвращает попытки по задаче
func (s *SubmissionService) AdminByChallenge(ctx context.Context, challengeID uint, limit, offset int) ([]entity.SubmissionDetail, error) {
	if _, err := s.challengeRepo.GetByID(ctx, challengeID); err != nil {
		return nil, err
	}
	return s.submissionRepo.ListByChallenge(ctx, challengeID, limit, offset)
}

// Stats возвращает статистику попыток по задаче
func (s *SubmissionService) Stats(ctx context.Context, challengeID uint) (*entity.ChallengeStats, error) {
	challenge, err := s.challengeRepo.GetByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	return s.submissionRepo.Stats(ctx, challenge)
}
