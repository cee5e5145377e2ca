package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/websocket"
)

// EventSnapshotter возвращает текущее состояние соревнования
type EventSnapshotter interface {
	Snapshot(ctx context.Context) (*EventSnapshot, error)
}

// EventWatcher периодически пересчитывает статус соревнования и объявляет
// его смену в ленте. Переход по расписанию сохраняет сам Snapshot.
type EventWatcher struct {
	events   EventSnapshotter
	feed     FeedBroadcaster
	interval time.Duration

	mu   sync.Mutex
	last entity.EventStatus
}

// NewEventWatcher создает наблюдателя. interval <= 0 заменяется на 5 секунд.
func NewEventWatcher(events EventSnapshotter, feed FeedBroadcaster, interval time.Duration) *EventWatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &EventWatcher{events: events, feed: feed, interval: interval}
}

// Run проверяет статус до отмены ctx
func (w *EventWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("[EventWatcher] Остановлен")
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check сравнивает статус с предыдущим и рассылает event:status при изменении.
// Первый вызов только запоминает статус.
func (w *EventWatcher) Check(ctx context.Context) bool {
	snap, err := w.events.Snapshot(ctx)
	if err != nil {
		log.Printf("[EventWatcher] Не удалось получить статус соревнования: %v", err)
		return false
	}

	w.mu.Lock()
	prev := w.last
	w.last = snap.Status
	w.mu.Unlock()

	if prev == "" || prev == snap.Status {
		return false
	}

	log.Printf("[EventWatcher] Статус соревнования: %s -> %s", prev, snap.Status)
	payload := websocket.StatusPayload{
		Status:     string(snap.Status),
		Previous:   string(prev),
		StartTime:  snap.StartTime,
		EndTime:    snap.EndTime,
		ServerTime: snap.ServerTime,
	}
	if err := w.feed.BroadcastEvent(websocket.EventStatusChanged, payload); err != nil {
		log.Printf("[EventWatcher] Ошибка рассылки event:status: %v", err)
	}
	return true
}
