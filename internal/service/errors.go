package service

import (
	"fmt"

	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
)

// Ошибки сервисов. Оборачивают общие ошибки, чтобы обработчики отображали их в нужный статус.
var (
	// ErrScoringLocked - параметры скоринга нельзя менять после первого решения
	ErrScoringLocked = fmt.Errorf("%w: scoring parameters cannot change after the first solve", apperrors.ErrConflict)
	// ErrNoTeam - пользователь не состоит в команде
	ErrNoTeam = fmt.Errorf("%w: user is not a member of any team", apperrors.ErrValidation)
)
