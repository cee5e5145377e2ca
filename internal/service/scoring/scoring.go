// Package scoring вычисляет стоимость задачи в зависимости от числа уже засчитанных решений.
package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
)

// decayPrecision - число знаков после запятой, сохраняемых на каждом шаге затухания
const decayPrecision = 12

// Config - параметры скоринга задачи
type Config struct {
	Mode        entity.ScoringMode
	BaseScore   int
	MinScore    int
	DecayFactor float64
}

// FromChallenge извлекает параметры скоринга из задачи
func FromChallenge(c *entity.Challenge) Config {
	return Config{
		Mode:        c.ScoringMode,
		BaseScore:   c.BaseScore,
		MinScore:    c.MinScore,
		DecayFactor: c.DecayFactor,
	}
}

// Validate проверяет инварианты параметров скоринга
func Validate(cfg Config) error {
	if cfg.BaseScore <= 0 {
		return fmt.Errorf("%w: base_score must be positive", apperrors.ErrValidation)
	}
	switch cfg.Mode {
	case entity.ScoringStatic:
		return nil
	case entity.ScoringDynamic:
		if cfg.MinScore < 0 || cfg.MinScore > cfg.BaseScore {
			return fmt.Errorf("%w: min_score must be within [0, base_score]", apperrors.ErrValidation)
		}
		if cfg.DecayFactor <= 0 || cfg.DecayFactor >= 1 {
			return fmt.Errorf("%w: decay_factor must be in (0, 1)", apperrors.ErrValidation)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown scoring_mode %q", apperrors.ErrValidation, cfg.Mode)
	}
}

// Normalize обнуляет параметры, не имеющие смысла для статического скоринга
func Normalize(cfg Config) Config {
	if cfg.Mode == entity.ScoringStatic {
		cfg.MinScore = 0
		cfg.DecayFactor = 0
	}
	return cfg
}

// ScoreFor возвращает число очков для решения с номером priorSolves (0 - первое решение).
// Для динамического режима: max(min, round(base * decay^n)), округление половины от нуля.
func ScoreFor(cfg Config, priorSolves int) int {
	if cfg.Mode != entity.ScoringDynamic || priorSolves <= 0 {
		return cfg.BaseScore
	}

	floor := cfg.MinScore
	decay := decimal.NewFromFloat(cfg.DecayFactor)
	value := decimal.NewFromInt(int64(cfg.BaseScore))

	// Умножаем пошагово: как только значение опустилось ниже пола, дальше считать незачем
	for i := 0; i < priorSolves; i++ {
		value = value.Mul(decay).Truncate(decayPrecision)
		if value.LessThan(decimal.NewFromInt(int64(floor))) {
			return floor
		}
	}

	score := int(value.Round(0).IntPart())
	if score < floor {
		return floor
	}
	return score
}

// Curve возвращает стоимость первых n решений
func Curve(cfg Config, n int) []int {
	if n <= 0 {
		return []int{}
	}
	values := make([]int, n)
	for i := range values {
		values[i] = ScoreFor(cfg, i)
	}
	return values
}
