package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HubConfig содержит настройки хаба
type HubConfig struct {
	// InstanceID - идентификатор инстанса в кластере, генерируется при пустом значении
	InstanceID string

	// Channel - канал Pub/Sub для рассылки событий между инстансами
	Channel string
}

// Hub хранит подключенных клиентов и рассылает им события ленты
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	instanceID string
	channel    string
	pubsub     PubSubProvider
}

// NewHub создает хаб. При provider == nil события не выходят за пределы процесса.
func NewHub(cfg HubConfig, provider PubSubProvider) *Hub {
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultBroadcastChannel
	}
	if provider == nil {
		provider = &NoOpPubSub{}
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		instanceID: cfg.InstanceID,
		channel:    cfg.Channel,
		pubsub:     provider,
	}
}

// InstanceID возвращает идентификатор инстанса
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Run подписывается на канал кластера и пересылает чужие события локальным
// клиентам до отмены ctx. При выходе отключает всех клиентов.
func (h *Hub) Run(ctx context.Context) error {
	msgCh, err := h.pubsub.Subscribe(ctx, h.channel)
	if err != nil {
		return fmt.Errorf("hub subscribe: %w", err)
	}
	log.Printf("[Hub] Запущен, инстанс %s, канал %s", h.instanceID, h.channel)

	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-msgCh:
			if !ok {
				return nil
			}
			var msg ClusterMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("[Hub] Некорректное сообщение кластера: %v", err)
				continue
			}
			// Свои события уже разосланы локально
			if msg.InstanceID == h.instanceID {
				continue
			}
			h.BroadcastBytesLocal(msg.Payload)
		}
	}
}

// Register добавляет клиента в хаб
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[Hub] Клиент %s подключен (%s), всего %d", client.ConnectionID, client.IP, count)
}

// Unregister удаляет клиента и закрывает его канал отправки. Повторный вызов безопасен.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.closeSend()
	}
	count := len(h.clients)
	h.mu.Unlock()
	if ok {
		log.Printf("[Hub] Клиент %s отключен, всего %d", client.ConnectionID, count)
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON рассылает событие локальным клиентам и публикует его для остальных инстансов
func (h *Hub) BroadcastJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	h.BroadcastBytesLocal(payload)

	data, err := json.Marshal(ClusterMessage{
		InstanceID: h.instanceID,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal cluster message: %w", err)
	}
	if err := h.pubsub.Publish(h.channel, data); err != nil {
		return fmt.Errorf("publish to cluster: %w", err)
	}
	return nil
}

// BroadcastBytesLocal отправляет сообщение только локальным клиентам.
// Клиенты с переполненным буфером отключаются.
func (h *Hub) BroadcastBytesLocal(message []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		if !client.trySend(message) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		log.Printf("[Hub] Буфер клиента %s переполнен, отключаем", client.ConnectionID)
		h.Unregister(client)
	}
}

// SendJSON отправляет событие одному клиенту
func (h *Hub) SendJSON(client *Client, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	h.mu.RLock()
	_, ok := h.clients[client]
	sent := ok && client.trySend(payload)
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("client %s is not registered", client.ConnectionID)
	}
	if !sent {
		h.Unregister(client)
		return fmt.Errorf("client %s send buffer is full", client.ConnectionID)
	}
	return nil
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		client.closeSend()
	}
}
