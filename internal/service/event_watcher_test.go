package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/websocket"
)

func TestEventWatcher_BroadcastsScheduledStart(t *testing.T) {
	// Arrange
	start := eventNow.Add(time.Minute)
	repo := new(MockEventRepository)
	repo.On("Get", mock.Anything).Return(&entity.EventConfig{
		ID: 1, Status: entity.EventNotStarted, StartTime: &start, MaxSubmissionAttempts: 5,
		SubmissionTimeWindowSeconds: 60, SubmissionBlockMinutes: 5,
	}, nil)
	repo.On("UpdateStatus", mock.Anything, uint(1), entity.EventNotStarted, entity.EventActive).Return(nil)
	svc := newTestEventService(repo, new(MockAuditRepository))
	feed := &fakeFeed{}
	watcher := NewEventWatcher(svc, feed, time.Second)

	// Act
	first := watcher.Check(context.Background())
	svc.now = func() time.Time { return start.Add(time.Second) }
	second := watcher.Check(context.Background())
	third := watcher.Check(context.Background())

	// Assert
	assert.False(t, first)
	assert.True(t, second)
	assert.False(t, third)
	assert.Equal(t, 1, feed.count(websocket.EventStatusChanged))
}

type stubSnapshotter struct {
	err error
}

func (s stubSnapshotter) Snapshot(context.Context) (*EventSnapshot, error) {
	return nil, s.err
}

func TestEventWatcher_SnapshotError(t *testing.T) {
	feed := &fakeFeed{}
	watcher := NewEventWatcher(stubSnapshotter{err: errors.New("db down")}, feed, 0)

	assert.False(t, watcher.Check(context.Background()))
	assert.Equal(t, 5*time.Second, watcher.interval)
	assert.Empty(t, feed.events)
}

func TestEventWatcher_RunStopsWithContext(t *testing.T) {
	repo := new(MockEventRepository)
	repo.On("Get", mock.Anything).Return(nil, errors.New("db down"))
	watcher := NewEventWatcher(newTestEventService(repo, new(MockAuditRepository)), &fakeFeed{}, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		watcher.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "watcher did not stop")
	}
}
