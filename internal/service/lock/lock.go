// Package lock сериализует обработку попыток одной команды по одной задаче.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Locker захватывает именованную блокировку. Возвращаемая функция освобождает ее.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// PairKey возвращает ключ блокировки для пары (команда, задача)
func PairKey(teamID, challengeID uint) string {
	return fmt.Sprintf("ctf:lock:%d:%d", teamID, challengeID)
}

// LocalLocker - блокировки в памяти процесса. Подходит для одного инстанса и тестов.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker создает LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

// Lock ждет освобождения ключа или отмены контекста
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *LocalLocker) release(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
