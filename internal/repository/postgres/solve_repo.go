package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// SolveRepo реализует repository.SolveRepository
type SolveRepo struct {
	db *gorm.DB
}

// NewSolveRepo создает новый репозиторий решений
func NewSolveRepo(db *gorm.DB) *SolveRepo {
	return &SolveRepo{db: db}
}

// CountByChallenge возвращает число решений задачи
func (r *SolveRepo) CountByChallenge(tx *gorm.DB, challengeID uint) (int64, error) {
	var count int64
	err := tx.Model(&entity.Solve{}).Where("challenge_id = ?", challengeID).Count(&count).Error
	return count, err
}

// Create вставляет решение через INSERT ... ON CONFLICT DO NOTHING.
// Возвращает false, если команда уже решила задачу или этот ранг уже занят другой командой.
func (r *SolveRepo) Create(tx *gorm.DB, solve *entity.Solve) (bool, error) {
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(solve)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Exists проверяет решение команды в рамках транзакции tx
func (r *SolveRepo) Exists(tx *gorm.DB, teamID, challengeID uint) (bool, error) {
	var count int64
	err := tx.Model(&entity.Solve{}).
		Where("team_id = ? AND challenge_id = ?", teamID, challengeID).
		Count(&count).Error
	return count > 0, err
}

// Has проверяет, решила ли команда задачу
func (r *SolveRepo) Has(ctx context.Context, teamID, challengeID uint) (bool, error) {
	return r.Exists(r.db.WithContext(ctx), teamID, challengeID)
}

// ListAll возвращает все решения в хронологическом порядке
func (r *SolveRepo) ListAll(ctx context.Context) ([]entity.Solve, error) {
	var solves []entity.Solve
	err := r.db.WithContext(ctx).Order("solved_at ASC, submission_id ASC").Find(&solves).Error
	return solves, err
}

func (r *SolveRepo) detailQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("solves").
		Select("solves.*, " +
			"COALESCE(teams.name, '') AS team_name, " +
			"COALESCE(users.username, '') AS username, " +
			"COALESCE(challenges.title, '') AS challenge_title").
		Joins("LEFT JOIN teams ON teams.id = solves.team_id").
		Joins("LEFT JOIN users ON users.id = solves.user_id").
		Joins("LEFT JOIN challenges ON challenges.id = solves.challenge_id").
		Order("solves.solved_at ASC, solves.submission_id ASC")
}

// ListDetailed возвращает все решения с именами в хронологическом порядке
func (r *SolveRepo) ListDetailed(ctx context.Context) ([]entity.SolveDetail, error) {
	var rows []entity.SolveDetail
	err := r.detailQuery(ctx).Scan(&rows).Error
	return rows, err
}

// ListFirstBloods возвращает первые решения каждой задачи
func (r *SolveRepo) ListFirstBloods(ctx context.Context) ([]entity.SolveDetail, error) {
	var rows []entity.SolveDetail
	err := r.detailQuery(ctx).Where("solves.is_first_blood = ?", true).Scan(&rows).Error
	return rows, err
}

// ListByTeam возвращает решения команды в хронологическом порядке
func (r *SolveRepo) ListByTeam(ctx context.Context, teamID uint) ([]entity.Solve, error) {
	var solves []entity.Solve
	err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("solved_at ASC, submission_id ASC").
		Find(&solves).Error
	return solves, err
}

// CountsByChallenge возвращает число решений по каждой задаче
func (r *SolveRepo) CountsByChallenge(ctx context.Context) (map[uint]int64, error) {
	var rows []struct {
		ChallengeID uint
		Solves      int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.Solve{}).
		Select("challenge_id, COUNT(*) AS solves").
		Group("challenge_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.ChallengeID] = row.Solves
	}
	return counts, nil
}
