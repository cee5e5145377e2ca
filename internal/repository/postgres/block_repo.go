package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// BlockRepo реализует repository.BlockRepository
type BlockRepo struct {
	db *gorm.DB
}

// NewBlockRepo создает новый репозиторий блокировок
func NewBlockRepo(db *gorm.DB) *BlockRepo {
	return &BlockRepo{db: db}
}

// Create сохраняет блокировку в рамках транзакции tx
func (r *BlockRepo) Create(tx *gorm.DB, block *entity.SubmissionBlock) error {
	return tx.Create(block).Error
}

// Latest возвращает блокировку пары с самым поздним сроком окончания
func (r *BlockRepo) Latest(ctx context.Context, teamID, challengeID uint) (*entity.SubmissionBlock, error) {
	var block entity.SubmissionBlock
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND challenge_id = ?", teamID, challengeID).
		Order("blocked_until DESC").
		Take(&block).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &block, nil
}
