package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// TeamRepo реализует repository.TeamRepository
type TeamRepo struct {
	db *gorm.DB
}

// NewTeamRepo создает новый репозиторий команд
func NewTeamRepo(db *gorm.DB) *TeamRepo {
	return &TeamRepo{db: db}
}

// GetByID возвращает команду по ID
func (r *TeamRepo) GetByID(ctx context.Context, id uint) (*entity.Team, error) {
	var team entity.Team
	if err := r.db.WithContext(ctx).First(&team, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &team, nil
}

// TeamIDForUser возвращает ID команды пользователя
func (r *TeamRepo) TeamIDForUser(ctx context.Context, userID uint) (uint, error) {
	var member entity.TeamMember
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&member).Error; err != nil {
		return 0, mapNotFound(err)
	}
	return member.TeamID, nil
}

// List возвращает все команды
func (r *TeamRepo) List(ctx context.Context) ([]entity.Team, error) {
	var teams []entity.Team
	err := r.db.WithContext(ctx).Order("id ASC").Find(&teams).Error
	return teams, err
}
