package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// ChallengeRepo реализует repository.ChallengeRepository
type ChallengeRepo struct {
	db *gorm.DB
}

// NewChallengeRepo создает новый репозиторий задач
func NewChallengeRepo(db *gorm.DB) *ChallengeRepo {
	return &ChallengeRepo{db: db}
}

// Create создает задачу
func (r *ChallengeRepo) Create(ctx context.Context, challenge *entity.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

// Update сохраняет все поля задачи
func (r *ChallengeRepo) Update(ctx context.Context, challenge *entity.Challenge) error {
	return r.db.WithContext(ctx).Save(challenge).Error
}

// UpdateIfUnsolved сохраняет все поля задачи, если по ней еще нет решений
func (r *ChallengeRepo) UpdateIfUnsolved(ctx context.Context, challenge *entity.Challenge) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(challenge).
		Where("NOT EXISTS (SELECT 1 FROM solves WHERE solves.challenge_id = challenges.id)").
		Select("*").
		Omit("id", "created_at").
		Updates(challenge)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID возвращает задачу по ID
func (r *ChallengeRepo) GetByID(ctx context.Context, id uint) (*entity.Challenge, error) {
	var challenge entity.Challenge
	if err := r.db.WithContext(ctx).First(&challenge, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &challenge, nil
}

// List возвращает все задачи
func (r *ChallengeRepo) List(ctx context.Context) ([]entity.Challenge, error) {
	var challenges []entity.Challenge
	err := r.db.WithContext(ctx).Order("category, id").Find(&challenges).Error
	return challenges, err
}

// ListPublished возвращает задачи, не являющиеся черновиками и отмеченные видимыми
func (r *ChallengeRepo) ListPublished(ctx context.Context) ([]entity.Challenge, error) {
	var challenges []entity.Challenge
	err := r.db.WithContext(ctx).
		Where("is_draft = ? AND is_visible = ?", false, true).
		Order("category, id").
		Find(&challenges).Error
	return challenges, err
}
