package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/repository"
	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
	"github.com/rabbitctf/rabbitctf-api/internal/service/scoreboard"
)

const (
	scoreboardCacheKey        = "scoreboard:v1"
	defaultScoreboardCacheTTL = 10 * time.Second
)

// ScoreboardService отдает таблицу результатов, кешируя ее в Redis
type ScoreboardService struct {
	teamRepo  repository.TeamRepository
	solveRepo repository.SolveRepository
	cacheRepo repository.CacheRepository
	ttl       time.Duration
	now       func() time.Time
}

// NewScoreboardService создает новый сервис таблицы результатов. cacheRepo может быть nil.
func NewScoreboardService(teamRepo repository.TeamRepository, solveRepo repository.SolveRepository, cacheRepo repository.CacheRepository, ttl time.Duration) *ScoreboardService {
	if ttl <= 0 {
		ttl = defaultScoreboardCacheTTL
	}
	return &ScoreboardService{
		teamRepo:  teamRepo,
		solveRepo: solveRepo,
		cacheRepo: cacheRepo,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get возвращает таблицу из кеша или пересчитывает ее по решениям.
// Ошибки Redis не мешают ответу: таблица просто считается заново.
func (s *ScoreboardService) Get(ctx context.Context) (*scoreboard.Board, error) {
	if s.cacheRepo != nil {
		var cached scoreboard.Board
		err := s.cacheRepo.GetJSON(ctx, scoreboardCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[ScoreboardService] Ошибка чтения кеша: %v. Пересчитываем.", err)
		}
	}

	board, err := s.Compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(ctx, scoreboardCacheKey, board, s.ttl); err != nil {
			log.Printf("[ScoreboardService] Не удалось сохранить таблицу в кеш: %v", err)
		}
	}
	return board, nil
}

// Compute пересчитывает таблицу напрямую из БД
func (s *ScoreboardService) Compute(ctx context.Context) (*scoreboard.Board, error) {
	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	solves, err := s.solveRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list solves: %w", err)
	}
	return &scoreboard.Board{
		Teams:       scoreboard.Aggregate(teams, solves),
		GeneratedAt: s.now(),
	}, nil
}

// Top возвращает первые n строк таблицы
func (s *ScoreboardService) Top(ctx context.Context, n int) ([]scoreboard.Row, error) {
	board, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(board.Teams) {
		return board.Teams, nil
	}
	return board.Teams[:n], nil
}

// TeamRow возвращает строку таблицы для команды
func (s *ScoreboardService) TeamRow(ctx context.Context, teamID uint) (*scoreboard.Row, error) {
	board, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	for i := range board.Teams {
		if board.Teams[i].TeamID == teamID {
			return &board.Teams[i], nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// Invalidate сбрасывает кеш таблицы после засчитанного решения
func (s *ScoreboardService) Invalidate(ctx context.Context) {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(ctx, scoreboardCacheKey); err != nil {
		log.Printf("[ScoreboardService] Не удалось сбросить кеш таблицы: %v", err)
	}
}
