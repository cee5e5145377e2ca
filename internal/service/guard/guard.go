// Package guard реализует защиту от перебора флагов: временные блокировки по окну неверных
// попыток и постоянный лимит попыток на задачу.
package guard

import (
	"fmt"
	"time"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// State - состояние пары (команда, задача)
type State int

const (
	// Open - попытки разрешены
	Open State = iota
	// Blocked - временная блокировка до BlockedUntil
	Blocked
	// Locked - исчерпан постоянный лимит попыток задачи
	Locked
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Blocked:
		return "blocked"
	case Locked:
		return "locked"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Policy - параметры окна неверных попыток
type Policy struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

// PolicyFromEvent строит политику из настроек соревнования, подставляя значения по умолчанию
func PolicyFromEvent(cfg *entity.EventConfig) Policy {
	p := Policy{
		MaxAttempts:   cfg.MaxSubmissionAttempts,
		Window:        time.Duration(cfg.SubmissionTimeWindowSeconds) * time.Second,
		BlockDuration: time.Duration(cfg.SubmissionBlockMinutes) * time.Minute,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = entity.DefaultMaxSubmissionAttempts
	}
	if p.Window <= 0 {
		p.Window = entity.DefaultSubmissionWindowSec * time.Second
	}
	if p.BlockDuration <= 0 {
		p.BlockDuration = entity.DefaultSubmissionBlockMin * time.Minute
	}
	return p
}

// Decision - результат проверки пары перед приемом попытки
type Decision struct {
	State        State
	BlockedUntil time.Time
	// Incorrect - число неверных попыток за все время
	Incorrect int64
	// Remaining - сколько неверных попыток осталось до постоянного лимита (-1 если лимита нет)
	Remaining int
}

// Allowed сообщает, можно ли принимать попытку
func (d Decision) Allowed() bool {
	return d.State == Open
}

// Evaluate вычисляет состояние по последней блокировке. Истечение блокировки ленивое:
// блокировка, срок которой прошел, просто перестает действовать.
func Evaluate(block *entity.SubmissionBlock, now time.Time) State {
	if block.IsActiveAt(now) {
		return Blocked
	}
	return Open
}

// ShouldBlock сообщает, нужно ли блокировать пару после очередной неверной попытки
func ShouldBlock(recentIncorrect int64, p Policy) bool {
	return recentIncorrect >= int64(p.MaxAttempts)
}

// BlockUntil возвращает момент окончания новой блокировки
func BlockUntil(now time.Time, p Policy) time.Time {
	return now.Add(p.BlockDuration)
}

// WindowStart возвращает начало окна подсчета неверных попыток
func WindowStart(now time.Time, p Policy) time.Time {
	return now.Add(-p.Window)
}

// IsLocked проверяет постоянный лимит задачи (0 - без ограничений)
func IsLocked(incorrect int64, attemptLimit int) bool {
	return attemptLimit > 0 && incorrect >= int64(attemptLimit)
}

// Remaining возвращает число оставшихся попыток или -1, если лимита нет
func Remaining(incorrect int64, attemptLimit int) int {
	if attemptLimit <= 0 {
		return -1
	}
	left := int64(attemptLimit) - incorrect
	if left < 0 {
		return 0
	}
	return int(left)
}
