package lock

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Снимаем блокировку, только если она все еще принадлежит нам
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockTimeout возвращается, если блокировку не удалось получить за отведенное время
var ErrLockTimeout = errors.New("lock wait timeout")

// RedisLocker - распределенная блокировка на SET NX PX.
// При недоступности Redis используется локальная блокировка процесса.
type RedisLocker struct {
	client   redis.UniversalClient
	ttl      time.Duration
	wait     time.Duration
	retry    time.Duration
	fallback *LocalLocker
}

// NewRedisLocker создает RedisLocker. ttl - время жизни ключа, wait - максимальное ожидание захвата.
func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		wait:     wait,
		retry:    20 * time.Millisecond,
		fallback: NewLocalLocker(),
	}
}

// Lock захватывает ключ в Redis, повторяя попытки до истечения wait
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("[RedisLocker] Ошибка Redis при захвате %s: %v. Используем локальную блокировку.", key, err)
			return l.fallback.Lock(ctx, key)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
					log.Printf("[RedisLocker] Не удалось освободить %s: %v", key, err)
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}
