package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/domain/repository"
	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
	"github.com/rabbitctf/rabbitctf-api/internal/pkg/testdb"
	"github.com/rabbitctf/rabbitctf-api/internal/repository/postgres"
	"github.com/rabbitctf/rabbitctf-api/internal/service/guard"
	"github.com/rabbitctf/rabbitctf-api/internal/service/lock"
	"github.com/rabbitctf/rabbitctf-api/internal/websocket"
)

// fakeFeed запоминает разосланные события
type fakeFeed struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeFeed) BroadcastEvent(eventType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func (f *fakeFeed) count(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) Invalidate(ctx context.Context) {
	c.calls.Add(1)
}

// testClock - управляемые часы
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type judgeFixture struct {
	svc         *SubmissionService
	db          *gorm.DB
	members     []entity.TeamMember
	feed        *fakeFeed
	invalidator *countingInvalidator
	clock       *testClock
}

func newJudgeFixture(t *testing.T, teams ...string) *judgeFixture {
	t.Helper()
	db := testdb.New(t)
	members := testdb.Seed(t, db, teams...)

	submissions := postgres.NewSubmissionRepo(db)
	g := guard.NewGuard(submissions, postgres.NewBlockRepo(db), nil)
	feed := &fakeFeed{}
	invalidator := &countingInvalidator{}
	clock := &testClock{now: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)}

	svc := NewSubmissionService(
		db,
		postgres.NewChallengeRepo(db),
		submissions,
		postgres.NewSolveRepo(db),
		postgres.NewTeamRepo(db),
		g,
		lock.NewLocalLocker(),
		invalidator,
		feed,
	)
	svc.now = clock.Now

	return &judgeFixture{svc: svc, db: db, members: members, feed: feed, invalidator: invalidator, clock: clock}
}

func (f *judgeFixture) challenge(t *testing.T, mutate func(c *entity.Challenge)) *entity.Challenge {
	t.Helper()
	c := &entity.Challenge{
		Title:           "rabbit-hole",
		Category:        "web",
		Difficulty:      entity.DifficultyEasy,
		FlagValue:       "CTF{down_the_hole}",
		IsCaseSensitive: true,
		ScoringMode:     entity.ScoringStatic,
		BaseScore:       100,
		IsVisible:       true,
	}
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func activeEvent() *EventSnapshot {
	return &EventSnapshot{
		Status: entity.EventActive,
		Policy: guard.Policy{MaxAttempts: 5, Window: time.Minute, BlockDuration: 5 * time.Minute},
	}
}

func (f *judgeFixture) submit(t *testing.T, member int, challengeID uint, value string) *SubmissionResult {
	t.Helper()
	res, err := f.svc.Submit(context.Background(), SubmitCommand{
		UserID:      f.members[member].UserID,
		ChallengeID: challengeID,
		Flag:        value,
		ClientIP:    "10.0.0.1",
		Event:       activeEvent(),
	})
	require.NoError(t, err)
	return res
}

func (f *judgeFixture) countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestSubmit_CorrectFlagAwardsScoreAndFirstBlood(t *testing.T) {
	// Arrange
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, nil)

	// Act
	res := f.submit(t, 0, c.ID, "  CTF{down_the_hole}\n")

	// Assert
	assert.Equal(t, entity.StatusCorrect, res.Status)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 100, res.ScoreAwarded)
	assert.True(t, res.IsFirstBlood)
	assert.False(t, res.AlreadySolved)
	require.NotNil(t, res.Rank)
	assert.Equal(t, 1, *res.Rank)

	assert.Equal(t, int64(1), f.countRows(t, &entity.Solve{}, "challenge_id = ?", c.ID))
	assert.Equal(t, int32(1), f.invalidator.calls.Load())
	assert.Equal(t, 1, f.feed.count(websocket.EventSolveNew))
	assert.Equal(t, 1, f.feed.count(websocket.EventFirstBlood))
	assert.Equal(t, 1, f.feed.count(websocket.EventScoreboardUpdated))
}

func TestSubmit_DynamicScoringDecaysPerSolve(t *testing.T) {
	f := newJudgeFixture(t, "alpha", "beta", "gamma")
	c := f.challenge(t, func(c *entity.Challenge) {
		c.ScoringMode = entity.ScoringDynamic
		c.MinScore = 10
		c.DecayFactor = 0.9
	})

	var scores []int
	var firstBloods int
	for i := range f.members {
		res := f.submit(t, i, c.ID, "CTF{down_the_hole}")
		scores = append(scores, res.ScoreAwarded)
		if res.IsFirstBlood {
			firstBloods++
		}
		f.clock.Advance(time.Minute)
	}

	assert.Equal(t, []int{100, 90, 81}, scores)
	assert.Equal(t, 1, firstBloods)
	assert.Equal(t, 1, f.feed.count(websocket.EventFirstBlood))
}

func TestSubmit_CaseInsensitiveFlag(t *testing.T) {
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, func(c *entity.Challenge) { c.IsCaseSensitive = false })

	res := f.submit(t, 0, c.ID, "ctf{DOWN_the_HOLE}")

	assert.Equal(t, entity.StatusCorrect, res.Status)
}

func TestSubmit_CaseSensitiveFlagRejectsWrongCase(t *testing.T) {
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, nil)

	res := f.submit(t, 0, c.ID, "ctf{down_the_hole}")

	assert.Equal(t, entity.StatusIncorrect, res.Status)
	assert.False(t, res.IsCorrect)
	assert.Nil(t, res.AttemptsRemaining, "Без лимита задачи остаток попыток не сообщается")
}

func TestSubmit_IdempotentResolve(t *testing.T) {
	// Arrange
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, nil)
	f.submit(t, 0, c.ID, "CTF{down_the_hole}")
	submissionsBefore := f.countRows(t, &entity.Submission{}, "team_id = ?", f.members[0].TeamID)

	// Act
	res := f.submit(t, 0, c.ID, "CTF{down_the_hole}")
	wrong := f.submit(t, 0, c.ID, "CTF{nope}")

	// Assert
	assert.Equal(t, entity.StatusCorrect, res.Status)
	assert.True(t, res.AlreadySolved)
	assert.Equal(t, 0, res.ScoreAwarded)
	assert.False(t, res.IsFirstBlood)
	assert.True(t, wrong.AlreadySolved, "После решения любой флаг возвращает already_solved")
	assert.Equal(t, submissionsBefore, f.countRows(t, &entity.Submission{}, "team_id = ?", f.members[0].TeamID),
		"Повторное решение не пишет в журнал")
	assert.Equal(t, int32(1), f.invalidator.calls.Load())
}

func TestSubmit_BlocksAfterFiveIncorrectWithinWindow(t *testing.T) {
	// Arrange
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, nil)

	// Act
	var last *SubmissionResult
	for i := 0; i < 5; i++ {
		last = f.submit(t, 0, c.ID, "CTF{guess}")
		f.clock.Advance(5 * time.Second)
	}
	blocked := f.submit(t, 0, c.ID, "CTF{down_the_hole}")

	// Assert
	assert.Equal(t, entity.StatusIncorrect, last.Status)
	require.NotNil(t, last.BlockedUntil, "Пятая неверная попытка включает блокировку")
	assert.Equal(t, entity.StatusBlocked, blocked.Status)
	require.NotNil(t, blocked.BlockedUntil)
	assert.True(t, blocked.BlockedUntil.Equal(*last.BlockedUntil))
	assert.Contains(t, blocked.Message, blocked.BlockedUntil.Format(time.RFC3339))
	assert.Equal(t, int64(5), f.countRows(t, &entity.Submission{}, "challenge_id = ?", c.ID),
		"Заблокированная попытка не пишется в журнал")

	// После окончания блокировки флаг снова принимается
	f.clock.Advance(5 * time.Minute)
	res := f.submit(t, 0, c.ID, "CTF{down_the_hole}")
	assert.Equal(t, entity.StatusCorrect, res.Status)
}

func TestSubmit_SlowIncorrectAttemptsDoNotBlock(t *testing.T) {
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, nil)

	for i := 0; i < 8; i++ {
		res := f.submit(t, 0, c.ID, "CTF{guess}")
		assert.Nil(t, res.BlockedUntil)
		f.clock.Advance(20 * time.Second)
	}
}

func TestSubmit_AttemptLimit(t *testing.T) {
	// Arrange
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, func(c *entity.Challenge) { c.AttemptLimit = 2 })

	// Act
	first := f.submit(t, 0, c.ID, "CTF{a}")
	f.clock.Advance(time.Minute)
	second := f.submit(t, 0, c.ID, "CTF{b}")
	f.clock.Advance(time.Minute)
	third := f.submit(t, 0, c.ID, "CTF{down_the_hole}")

	// Assert
	require.NotNil(t, first.AttemptsRemaining)
	assert.Equal(t, 1, *first.AttemptsRemaining)
	require.NotNil(t, second.AttemptsRemaining)
	assert.Equal(t, 0, *second.AttemptsRemaining)
	assert.Equal(t, entity.StatusAttemptLimitExceeded, third.Status)
	assert.Equal(t, int64(2), f.countRows(t, &entity.Submission{}, "challenge_id = ?", c.ID))
}

func TestSubmit_EventNotActive(t *testing.T) {
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, nil)

	for _, ev := range []*EventSnapshot{nil, {Status: entity.EventPaused}, {Status: entity.EventFinished}, {Status: entity.EventNotStarted}} {
		res, err := f.svc.Submit(context.Background(), SubmitCommand{
			UserID:      f.members[0].UserID,
			ChallengeID: c.ID,
			Flag:        "CTF{down_the_hole}",
			Event:       ev,
		})
		require.NoError(t, err)
		assert.Equal(t, entity.StatusEventNotActive, res.Status)
	}
	assert.Equal(t, int64(0), f.countRows(t, &entity.Submission{}, "challenge_id = ?", c.ID))
}

func TestSubmit_HiddenChallengeIsNotFound(t *testing.T) {
	f := newJudgeFixture(t, "alpha")
	hidden := f.challenge(t, func(c *entity.Challenge) { c.IsVisible = false })
	draft := f.challenge(t, func(c *entity.Challenge) { c.IsDraft = true })
	future := f.challenge(t, func(c *entity.Challenge) {
		from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		c.VisibleFrom = &from
	})

	for _, id := range []uint{hidden.ID, draft.ID, future.ID, 9999} {
		res := f.submit(t, 0, id, "CTF{down_the_hole}")
		assert.Equal(t, entity.StatusNotFound, res.Status, "challenge %d", id)
	}

	// Администратор обходит проверку видимости
	res, err := f.svc.Submit(context.Background(), SubmitCommand{
		UserID:      f.members[0].UserID,
		IsAdmin:     true,
		ChallengeID: hidden.ID,
		Flag:        "CTF{down_the_hole}",
		Event:       activeEvent(),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCorrect, res.Status)
}

func TestSubmit_Validation(t *testing.T) {
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, nil)

	_, err := f.svc.Submit(context.Background(), SubmitCommand{UserID: f.members[0].UserID, ChallengeID: c.ID, Flag: "   ", Event: activeEvent()})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	_, err = f.svc.Submit(context.Background(), SubmitCommand{UserID: f.members[0].UserID, ChallengeID: c.ID, Flag: string(long), Event: activeEvent()})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Submit(context.Background(), SubmitCommand{UserID: 4242, ChallengeID: c.ID, Flag: "CTF{x}", Event: activeEvent()})
	assert.ErrorIs(t, err, ErrNoTeam)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSubmit_ConcurrentCorrectSubmissionsCreditOnce(t *testing.T) {
	// Arrange
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, nil)
	const workers = 8

	// Act
	results := make([]*SubmissionResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Submit(context.Background(), SubmitCommand{
				UserID:      f.members[0].UserID,
				ChallengeID: c.ID,
				Flag:        "CTF{down_the_hole}",
				Event:       activeEvent(),
			})
			if assert.NoError(t, err) {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	// Assert
	credited := 0
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, entity.StatusCorrect, res.Status)
		if !res.AlreadySolved {
			credited++
			assert.Equal(t, 100, res.ScoreAwarded)
		}
	}
	assert.Equal(t, 1, credited)
	assert.Equal(t, int64(1), f.countRows(t, &entity.Solve{}, "challenge_id = ?", c.ID))
	assert.Equal(t, int64(1), f.countRows(t, &entity.Submission{}, "challenge_id = ? AND is_correct = ?", c.ID, true))
}

func TestSubmit_ConcurrentTeamsGetDistinctRanks(t *testing.T) {
	f := newJudgeFixture(t, "alpha", "beta", "gamma", "delta")
	c := f.challenge(t, nil)

	var wg sync.WaitGroup
	var firstBloods atomic.Int32
	for i := range f.members {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Submit(context.Background(), SubmitCommand{
				UserID:      f.members[i].UserID,
				ChallengeID: c.ID,
				Flag:        "CTF{down_the_hole}",
				Event:       activeEvent(),
			})
			if assert.NoError(t, err) && res.IsFirstBlood {
				firstBloods.Add(1)
			}
		}(i)
	}
	wg.Wait()

	var solves []entity.Solve
	require.NoError(t, f.db.Where("challenge_id = ?", c.ID).Order("rank").Find(&solves).Error)
	require.Len(t, solves, 4)
	for i, s := range solves {
		assert.Equal(t, i, s.Rank)
		assert.Equal(t, i == 0, s.IsFirstBlood)
	}
	assert.Equal(t, int32(1), firstBloods.Load())
}

// staleSolveRepo отдает устаревшие чтения, как если бы решение записал другой инстанс
type staleSolveRepo struct {
	repository.SolveRepository

	mu         sync.Mutex
	staleCount *int64
	onStale    func()
	hideSolves bool
}

func (r *staleSolveRepo) CountByChallenge(tx *gorm.DB, challengeID uint) (int64, error) {
	r.mu.Lock()
	stale := r.staleCount
	r.staleCount = nil
	r.mu.Unlock()

	if stale == nil {
		return r.SolveRepository.CountByChallenge(tx, challengeID)
	}
	if r.onStale != nil {
		r.onStale()
	}
	return *stale, nil
}

func (r *staleSolveRepo) Has(ctx context.Context, teamID, challengeID uint) (bool, error) {
	if r.hideSolves {
		return false, nil
	}
	return r.SolveRepository.Has(ctx, teamID, challengeID)
}

func TestSubmit_TakenRankRetriesWithNextRank(t *testing.T) {
	// Arrange
	f := newJudgeFixture(t, "alpha", "beta")
	c := f.challenge(t, nil)
	first := f.submit(t, 0, c.ID, "CTF{down_the_hole}")
	require.True(t, first.IsFirstBlood)

	staleCount := int64(0)
	f.svc.solveRepo = &staleSolveRepo{
		SolveRepository: f.svc.solveRepo,
		staleCount:      &staleCount,
		onStale:         func() { f.clock.Advance(time.Second) },
	}
	retryAt := f.clock.Now().Add(time.Second)

	// Act
	res := f.submit(t, 1, c.ID, "CTF{down_the_hole}")

	// Assert
	assert.Equal(t, entity.StatusCorrect, res.Status)
	assert.False(t, res.AlreadySolved)
	assert.False(t, res.IsFirstBlood)
	require.NotNil(t, res.Rank)
	assert.Equal(t, 2, *res.Rank)
	assert.Equal(t, 100, res.ScoreAwarded)

	assert.Equal(t, int64(2), f.countRows(t, &entity.Submission{}, "challenge_id = ? AND is_correct = ?", c.ID, true))
	assert.Equal(t, int64(1), f.countRows(t, &entity.Submission{}, "team_id = ?", f.members[1].TeamID),
		"Откатанная попытка не должна оставить запись в журнале")
	assert.Equal(t, int64(2), f.countRows(t, &entity.Solve{}, "challenge_id = ?", c.ID))

	var solve entity.Solve
	require.NoError(t, f.db.Where("team_id = ? AND challenge_id = ?", f.members[1].TeamID, c.ID).Take(&solve).Error)
	assert.Equal(t, 1, solve.Rank)
	assert.False(t, solve.IsFirstBlood)
	assert.WithinDuration(t, retryAt, solve.SolvedAt, time.Millisecond, "Время решения берется на успешной попытке")
}

func TestSubmit_StaleSolveReadBecomesAlreadySolved(t *testing.T) {
	// Arrange
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, nil)
	first := f.submit(t, 0, c.ID, "CTF{down_the_hole}")
	require.Equal(t, entity.StatusCorrect, first.Status)
	f.svc.solveRepo = &staleSolveRepo{SolveRepository: f.svc.solveRepo, hideSolves: true}

	// Act
	second := f.submit(t, 0, c.ID, "CTF{down_the_hole}")

	// Assert
	assert.Equal(t, entity.StatusCorrect, second.Status)
	assert.True(t, second.IsCorrect)
	assert.True(t, second.AlreadySolved)
	assert.Equal(t, 0, second.ScoreAwarded)
	assert.Equal(t, int64(1), f.countRows(t, &entity.Solve{}, "challenge_id = ?", c.ID))
	assert.Equal(t, int64(1), f.countRows(t, &entity.Submission{}, "challenge_id = ? AND is_correct = ?", c.ID, true))
}

func TestChallengeStatus(t *testing.T) {
	// Arrange
	f := newJudgeFixture(t, "alpha")
	c := f.challenge(t, func(c *entity.Challenge) { c.AttemptLimit = 10 })
	for i := 0; i < 5; i++ {
		f.submit(t, 0, c.ID, "CTF{guess}")
	}

	// Act
	status, err := f.svc.ChallengeStatus(context.Background(), f.members[0].UserID, false, c.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(5), status.AttemptsMade)
	require.NotNil(t, status.AttemptsRemaining)
	assert.Equal(t, 5, *status.AttemptsRemaining)
	assert.True(t, status.IsBlocked)
	require.NotNil(t, status.BlockedUntil)
	assert.False(t, status.HasSolved)
	require.NotNil(t, status.LastAttemptAt)
	assert.True(t, status.LastAttemptAt.Equal(f.clock.Now()))
}

func TestFirstBloodsAndTimeline(t *testing.T) {
	f := newJudgeFixture(t, "alpha", "beta")
	web := f.challenge(t, nil)
	crypto := f.challenge(t, func(c *entity.Challenge) { c.Title = "crypto"; c.FlagValue = "CTF{rsa}" })

	f.submit(t, 0, web.ID, "CTF{down_the_hole}")
	f.clock.Advance(time.Minute)
	f.submit(t, 1, web.ID, "CTF{down_the_hole}")
	f.clock.Advance(time.Minute)
	f.submit(t, 1, crypto.ID, "CTF{rsa}")

	bloods, err := f.svc.FirstBloods(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, bloods, 2)
	assert.Equal(t, crypto.ID, bloods[0].ChallengeID, "Новые первыми")
	assert.Equal(t, "beta", bloods[0].TeamName)
	assert.Equal(t, "alpha", bloods[1].TeamName)

	timeline, err := f.svc.SolveTimeline(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, "crypto", timeline[0].ChallengeTitle)
	assert.Equal(t, "rabbit-hole", timeline[1].ChallengeTitle)
	assert.Equal(t, f.members[1].TeamID, timeline[1].TeamID)
}
