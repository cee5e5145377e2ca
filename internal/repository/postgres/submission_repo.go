package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
)

// recentActivityLimit - сколько последних попыток попадает в статистику задачи
const recentActivityLimit = 10

// SubmissionRepo реализует repository.SubmissionRepository.
// Обновления и удаления попыток не поддерживаются.
type SubmissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo создает новый репозиторий журнала попыток
func NewSubmissionRepo(db *gorm.DB) *SubmissionRepo {
	return &SubmissionRepo{db: db}
}

// Create добавляет попытку. Частичный уникальный индекс не дает записать вторую верную
// попытку команды по задаче, такое нарушение возвращается как ErrConflict.
func (r *SubmissionRepo) Create(tx *gorm.DB, submission *entity.Submission) error {
	if err := tx.Create(submission).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: team %d already has a correct submission for challenge %d",
				apperrors.ErrConflict, submission.TeamID, submission.ChallengeID)
		}
		return err
	}
	return nil
}

// CountIncorrect возвращает число неверных попыток команды по задаче за все время
func (r *SubmissionRepo) CountIncorrect(ctx context.Context, teamID, challengeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Submission{}).
		Where("team_id = ? AND challenge_id = ? AND is_correct = ?", teamID, challengeID, false).
		Count(&count).Error
	return count, err
}

// CountIncorrectSince возвращает число неверных попыток начиная с since (включительно)
func (r *SubmissionRepo) CountIncorrectSince(tx *gorm.DB, teamID, challengeID uint, since time.Time) (int64, error) {
	var count int64
	err := tx.Model(&entity.Submission{}).
		Where("team_id = ? AND challenge_id = ? AND is_correct = ? AND submitted_at >= ?", teamID, challengeID, false, since).
		Count(&count).Error
	return count, err
}

// LastAttemptAt возвращает время последней попытки команды по задаче или nil
func (r *SubmissionRepo) LastAttemptAt(ctx context.Context, teamID, challengeID uint) (*time.Time, error) {
	var submission entity.Submission
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND challenge_id = ?", teamID, challengeID).
		Order("submitted_at DESC, id DESC").
		Take(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &submission.SubmittedAt, nil
}

// detailQuery строит запрос попыток с именами команды, пользователя и задачи
func (r *SubmissionRepo) detailQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("submissions").
		Select("submissions.*, " +
			"COALESCE(teams.name, '') AS team_name, " +
			"COALESCE(users.username, '') AS username, " +
			"COALESCE(challenges.title, '') AS challenge_title").
		Joins("LEFT JOIN teams ON teams.id = submissions.team_id").
		Joins("LEFT JOIN users ON users.id = submissions.user_id").
		Joins("LEFT JOIN challenges ON challenges.id = submissions.challenge_id").
		Order("submissions.submitted_at DESC, submissions.id DESC")
}

func (r *SubmissionRepo) listDetailed(query *gorm.DB, limit, offset int) ([]entity.SubmissionDetail, error) {
	var rows []entity.SubmissionDetail
	err := query.Limit(limit).Offset(offset).Scan(&rows).Error
	return rows, err
}

// ListByUser возвращает попытки пользователя, новые первыми
func (r *SubmissionRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]entity.SubmissionDetail, error) {
	return r.listDetailed(r.detailQuery(ctx).Where("submissions.user_id = ?", userID), limit, offset)
}

// ListByTeam возвращает попытки команды, новые первыми
func (r *SubmissionRepo) ListByTeam(ctx context.Context, teamID uint, limit, offset int) ([]entity.SubmissionDetail, error) {
	return r.listDetailed(r.detailQuery(ctx).Where("submissions.team_id = ?", teamID), limit, offset)
}

// ListByChallenge возвращает попытки по задаче, новые первыми
func (r *SubmissionRepo) ListByChallenge(ctx context.Context, challengeID uint, limit, offset int) ([]entity.SubmissionDetail, error) {
	return r.listDetailed(r.detailQuery(ctx).Where("submissions.challenge_id = ?", challengeID), limit, offset)
}

// ListAll возвращает все попытки, новые первыми
func (r *SubmissionRepo) ListAll(ctx context.Context, limit, offset int) ([]entity.SubmissionDetail, error) {
	return r.listDetailed(r.detailQuery(ctx), limit, offset)
}

// Stats считает статистику попыток по задаче
func (r *SubmissionRepo) Stats(ctx context.Context, challenge *entity.Challenge) (*entity.ChallengeStats, error) {
	db := r.db.WithContext(ctx)
	stats := &entity.ChallengeStats{ChallengeID: challenge.ID}

	if err := db.Model(&entity.Submission{}).
		Where("challenge_id = ?", challenge.ID).
		Count(&stats.TotalSubmissions).Error; err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	if err := db.Model(&entity.Submission{}).
		Where("challenge_id = ? AND is_correct = ?", challenge.ID, true).
		Count(&stats.CorrectSubmissions).Error; err != nil {
		return nil, fmt.Errorf("count correct submissions: %w", err)
	}
	if err := db.Model(&entity.Solve{}).
		Where("challenge_id = ?", challenge.ID).
		Count(&stats.UniqueSolvers).Error; err != nil {
		return nil, fmt.Errorf("count solvers: %w", err)
	}

	if stats.UniqueSolvers > 0 {
		// Попытки решивших команд до момента решения включительно
		var attempts int64
		err := db.Table("submissions").
			Joins("JOIN solves ON solves.team_id = submissions.team_id AND solves.challenge_id = submissions.challenge_id").
			Where("submissions.challenge_id = ? AND submissions.submitted_at <= solves.solved_at", challenge.ID).
			Count(&attempts).Error
		if err != nil {
			return nil, fmt.Errorf("count attempts before solve: %w", err)
		}
		stats.AverageAttempts = float64(attempts) / float64(stats.UniqueSolvers)

		var first entity.Solve
		err = db.Where("challenge_id = ?", challenge.ID).Order("solved_at ASC").Take(&first).Error
		if err != nil {
			return nil, fmt.Errorf("load first solve: %w", err)
		}
		minutes := int(first.SolvedAt.Sub(challenge.CreatedAt).Minutes())
		stats.FastestSolveMinutes = &minutes
	}

	recent, err := r.ListByChallenge(ctx, challenge.ID, recentActivityLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("load recent activity: %w", err)
	}
	stats.RecentActivity = recent

	return stats, nil
}
