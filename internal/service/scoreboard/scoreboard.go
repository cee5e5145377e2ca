// Package scoreboard строит таблицу результатов из засчитанных решений.
package scoreboard

import (
	"sort"
	"time"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
)

// TimelinePoint - накопленный счет команды после очередного решения
type TimelinePoint struct {
	Time  time.Time `json:"time"`
	Score int       `json:"score"`
}

// Row - строка таблицы результатов
type Row struct {
	Rank       int             `json:"rank"`
	TeamID     uint            `json:"id"`
	Name       string          `json:"name"`
	TotalScore int             `json:"totalScore"`
	Solves     int             `json:"solves"`
	LastSolve  *time.Time      `json:"lastSolve"`
	Timeline   []TimelinePoint `json:"timeline"`
}

// Board - таблица результатов целиком
type Board struct {
	Teams       []Row     `json:"teams"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Aggregate суммирует очки команд по решениям и упорядочивает строки:
// по убыванию счета, при равенстве раньше тот, кто раньше сделал последнее решение,
// команды без решений в конце, затем по id команды.
// Решения команд, которых нет в teams, игнорируются.
func Aggregate(teams []entity.Team, solves []entity.Solve) []Row {
	rows := make([]Row, 0, len(teams))
	index := make(map[uint]int, len(teams))
	for _, t := range teams {
		index[t.ID] = len(rows)
		rows = append(rows, Row{TeamID: t.ID, Name: t.Name, Timeline: []TimelinePoint{}})
	}

	ordered := make([]entity.Solve, len(solves))
	copy(ordered, solves)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].SolvedAt.Equal(ordered[j].SolvedAt) {
			return ordered[i].SolvedAt.Before(ordered[j].SolvedAt)
		}
		return ordered[i].SubmissionID < ordered[j].SubmissionID
	})

	for _, s := range ordered {
		i, ok := index[s.TeamID]
		if !ok {
			continue
		}
		row := &rows[i]
		row.TotalScore += s.ScoreAwarded
		row.Solves++
		solvedAt := s.SolvedAt.UTC()
		row.LastSolve = &solvedAt
		row.Timeline = append(row.Timeline, TimelinePoint{Time: solvedAt, Score: row.TotalScore})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return less(rows[i], rows[j])
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

func less(a, b Row) bool {
	if a.TotalScore != b.TotalScore {
		return a.TotalScore > b.TotalScore
	}
	switch {
	case a.LastSolve != nil && b.LastSolve != nil:
		if !a.LastSolve.Equal(*b.LastSolve) {
			return a.LastSolve.Before(*b.LastSolve)
		}
	case a.LastSolve != nil:
		return true
	case b.LastSolve != nil:
		return false
	}
	return a.TeamID < b.TeamID
}
