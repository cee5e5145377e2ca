package websocket

import "time"

// Типы событий ленты соревнования
const (
	// EventSolveNew сообщает о засчитанном решении
	EventSolveNew = "solve:new"

	// EventFirstBlood сообщает о первом решении задачи
	EventFirstBlood = "solve:first_blood"

	// EventScoreboardUpdated сообщает, что таблицу результатов стоит перезапросить
	EventScoreboardUpdated = "scoreboard:updated"

	// EventStatusChanged сообщает о смене статуса соревнования
	EventStatusChanged = "event:status"

	// EventServerError - ошибка обработки сообщения клиента
	EventServerError = "server:error"

	// EventPong - ответ на client:ping
	EventPong = "server:pong"
)

// Типы входящих сообщений клиента
const (
	// MessagePing - проверка соединения на уровне приложения
	MessagePing = "client:ping"
)

// SolvePayload - данные событий solve:new и solve:first_blood
type SolvePayload struct {
	TeamID         uint      `json:"team_id"`
	TeamName       string    `json:"team_name"`
	ChallengeID    uint      `json:"challenge_id"`
	ChallengeTitle string    `json:"challenge_title"`
	Category       string    `json:"category"`
	ScoreAwarded   int       `json:"score_awarded"`
	Rank           int       `json:"rank"`
	IsFirstBlood   bool      `json:"is_first_blood"`
	SolvedAt       time.Time `json:"solved_at"`
}

// ScoreboardPayload - данные события scoreboard:updated
type ScoreboardPayload struct {
	UpdatedAt time.Time `json:"updated_at"`
}

// PongPayload - данные события server:pong
type PongPayload struct {
	ServerTime time.Time `json:"server_time"`
}

// StatusPayload - данные события event:status
type StatusPayload struct {
	Status     string     `json:"status"`
	Previous   string     `json:"previous"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	ServerTime time.Time  `json:"server_time"`
}
