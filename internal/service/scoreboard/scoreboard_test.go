package scoreboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

var base = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func solve(team, chal uint, score int, minutes int) entity.Solve {
	return entity.Solve{TeamID: team, ChallengeID: chal, ScoreAwarded: score, SolvedAt: base.Add(time.Duration(minutes) * time.Minute)}
}

func ids(rows []Row) []uint {
	out := make([]uint, len(rows))
	for i, r := range rows {
		out[i] = r.TeamID
	}
	return out
}

func TestAggregate_TotalsAndTimeline(t *testing.T) {
	// Arrange
	teams := []entity.Team{{ID: 1, Name: "alpha"}, {ID: 2, Name: "beta"}}
	solves := []entity.Solve{
		solve(1, 20, 90, 30),
		solve(1, 10, 100, 10),
		solve(2, 10, 90, 20),
	}

	// Act
	rows := Aggregate(teams, solves)

	// Assert
	require.Len(t, rows, 2)
	alpha := rows[0]
	assert.Equal(t, uint(1), alpha.TeamID)
	assert.Equal(t, 1, alpha.Rank)
	assert.Equal(t, 190, alpha.TotalScore)
	assert.Equal(t, 2, alpha.Solves)
	require.NotNil(t, alpha.LastSolve)
	assert.True(t, alpha.LastSolve.Equal(base.Add(30*time.Minute)))
	assert.Equal(t, []TimelinePoint{
		{Time: base.Add(10 * time.Minute), Score: 100},
		{Time: base.Add(30 * time.Minute), Score: 190},
	}, alpha.Timeline)

	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, 90, rows[1].TotalScore)
}

func TestAggregate_TieBrokenByEarlierLastSolve(t *testing.T) {
	teams := []entity.Team{{ID: 1, Name: "late"}, {ID: 2, Name: "early"}}
	solves := []entity.Solve{
		solve(1, 10, 100, 50),
		solve(2, 20, 100, 5),
	}

	rows := Aggregate(teams, solves)

	assert.Equal(t, []uint{2, 1}, ids(rows))
}

func TestAggregate_TeamsWithoutSolvesLast(t *testing.T) {
	teams := []entity.Team{{ID: 3, Name: "idle-b"}, {ID: 1, Name: "idle-a"}, {ID: 2, Name: "zero"}}
	solves := []entity.Solve{solve(2, 10, 0, 5)}

	rows := Aggregate(teams, solves)

	// Команда с решением за 0 очков выше команд без решений, остальные по id
	assert.Equal(t, []uint{2, 1, 3}, ids(rows))
	assert.Nil(t, rows[1].LastSolve)
	assert.Empty(t, rows[1].Timeline)
	assert.NotNil(t, rows[1].Timeline)
}

func TestAggregate_FullTieOrderedByTeamID(t *testing.T) {
	teams := []entity.Team{{ID: 7, Name: "b"}, {ID: 4, Name: "a"}}
	solves := []entity.Solve{solve(7, 10, 50, 1), solve(4, 20, 50, 1)}

	rows := Aggregate(teams, solves)

	assert.Equal(t, []uint{4, 7}, ids(rows))
}

func TestAggregate_IgnoresUnknownTeams(t *testing.T) {
	rows := Aggregate([]entity.Team{{ID: 1, Name: "a"}}, []entity.Solve{solve(99, 10, 500, 1)})

	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].TotalScore)
}

func TestAggregate_Empty(t *testing.T) {
	rows := Aggregate(nil, nil)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
