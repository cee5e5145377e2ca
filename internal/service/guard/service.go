package guard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/domain/repository"
	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
)

// Guard проверяет и обновляет состояние защиты от перебора.
// Источник истины - БД, кеш только ускоряет проверку активных блокировок.
type Guard struct {
	submissions repository.SubmissionRepository
	blocks      repository.BlockRepository
	cache       repository.CacheRepository
}

// NewGuard создает Guard. cache может быть nil.
func NewGuard(submissions repository.SubmissionRepository, blocks repository.BlockRepository, cache repository.CacheRepository) *Guard {
	return &Guard{
		submissions: submissions,
		blocks:      blocks,
		cache:       cache,
	}
}

func blockCacheKey(teamID, challengeID uint) string {
	return fmt.Sprintf("ctf:block:%d:%d", teamID, challengeID)
}

// Check определяет, можно ли принять попытку команды по задаче.
// Сначала проверяется постоянный лимит задачи, затем временная блокировка.
func (g *Guard) Check(ctx context.Context, teamID, challengeID uint, attemptLimit int, now time.Time) (Decision, error) {
	incorrect, err := g.submissions.CountIncorrect(ctx, teamID, challengeID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count incorrect attempts: %w", err)
	}

	decision := Decision{
		State:     Open,
		Incorrect: incorrect,
		Remaining: Remaining(incorrect, attemptLimit),
	}

	if IsLocked(incorrect, attemptLimit) {
		decision.State = Locked
		return decision, nil
	}

	if until, ok := g.cachedBlock(ctx, teamID, challengeID, now); ok {
		decision.State = Blocked
		decision.BlockedUntil = until
		return decision, nil
	}

	block, err := g.blocks.Latest(ctx, teamID, challengeID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return Decision{}, fmt.Errorf("failed to load submission block: %w", err)
	}
	if Evaluate(block, now) == Blocked {
		decision.State = Blocked
		decision.BlockedUntil = block.BlockedUntil
	}
	return decision, nil
}

// AfterIncorrect вызывается в той же транзакции, что и запись неверной попытки.
// Возвращает созданную блокировку или nil.
func (g *Guard) AfterIncorrect(tx *gorm.DB, teamID, challengeID uint, policy Policy, now time.Time) (*entity.SubmissionBlock, error) {
	recent, err := g.submissions.CountIncorrectSince(tx, teamID, challengeID, WindowStart(now, policy))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent attempts: %w", err)
	}
	if !ShouldBlock(recent, policy) {
		return nil, nil
	}

	block := &entity.SubmissionBlock{
		TeamID:       teamID,
		ChallengeID:  challengeID,
		BlockedUntil: BlockUntil(now, policy),
		Reason:       fmt.Sprintf("%d incorrect attempts within %s", recent, policy.Window),
		CreatedAt:    now,
	}
	if err := g.blocks.Create(tx, block); err != nil {
		return nil, fmt.Errorf("failed to create submission block: %w", err)
	}
	return block, nil
}

// Remember кладет блокировку в кеш. Вызывается после коммита транзакции.
func (g *Guard) Remember(ctx context.Context, block *entity.SubmissionBlock, now time.Time) {
	if g.cache == nil || block == nil {
		return
	}
	ttl := block.BlockedUntil.Sub(now)
	if ttl <= 0 {
		return
	}
	key := blockCacheKey(block.TeamID, block.ChallengeID)
	if err := g.cache.Set(ctx, key, block.BlockedUntil.UTC().Format(time.RFC3339Nano), ttl); err != nil {
		log.Printf("[Guard] Не удалось закешировать блокировку %s: %v", key, err)
	}
}

func (g *Guard) cachedBlock(ctx context.Context, teamID, challengeID uint, now time.Time) (time.Time, bool) {
	if g.cache == nil {
		return time.Time{}, false
	}
	key := blockCacheKey(teamID, challengeID)
	raw, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[Guard] Ошибка чтения кеша блокировки %s: %v. Проверяем по БД.", key, err)
		}
		return time.Time{}, false
	}
	until, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil || !now.Before(until) {
		return time.Time{}, false
	}
	return until, true
}
