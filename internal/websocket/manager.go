package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundEvent - входящее сообщение клиента с отложенным разбором данных
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MessageHandler обрабатывает входящее сообщение определенного типа
type MessageHandler func(data json.RawMessage, client *Client) error

// Manager обрабатывает WebSocket сообщения и рассылает события ленты
type Manager struct {
	hub            HubInterface
	messageHandler map[string]MessageHandler
	now            func() time.Time
}

// NewManager создает новый менеджер WebSocket с обработчиком client:ping
func NewManager(hub HubInterface) *Manager {
	m := &Manager{
		hub:            hub,
		messageHandler: make(map[string]MessageHandler),
		now:            func() time.Time { return time.Now().UTC() },
	}
	m.RegisterHandler(MessagePing, m.handlePing)
	return m
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений.
// Регистрация выполняется до начала приема соединений.
func (m *Manager) RegisterHandler(eventType string, handler MessageHandler) {
	m.messageHandler[eventType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event inboundEvent
	if err := json.Unmarshal(message, &event); err != nil {
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return fmt.Errorf("unmarshal client message: %w", err)
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}

	if err := handler(event.Data, client); err != nil {
		log.Printf("[WebSocketManager] Обработчик '%s' вернул ошибку для %s: %v", event.Type, client.ConnectionID, err)
		return err
	}
	return nil
}

// SendErrorToClient отправляет сообщение об ошибке клиенту, не закрывая соединение
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	errorEvent := Event{
		Type: EventServerError,
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	}
	if err := m.hub.SendJSON(client, errorEvent); err != nil {
		log.Printf("[WebSocketManager] Не удалось отправить ошибку клиенту %s: %v", client.ConnectionID, err)
	}
}

// BroadcastEvent отправляет событие всем клиентам
func (m *Manager) BroadcastEvent(eventType string, data interface{}) error {
	return m.hub.BroadcastJSON(Event{Type: eventType, Data: data})
}

// ClientCount возвращает количество подключенных клиентов
func (m *Manager) ClientCount() int {
	return m.hub.ClientCount()
}

func (m *Manager) handlePing(_ json.RawMessage, client *Client) error {
	return m.hub.SendJSON(client, Event{Type: EventPong, Data: PongPayload{ServerTime: m.now()}})
}
