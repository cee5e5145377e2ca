package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/rabbitctf/rabbitctf-api/internal/websocket"
)

// WSHandler обрабатывает подключения к ленте событий
type WSHandler struct {
	hub       *websocket.Hub
	wsManager *websocket.Manager
	limiter   *websocket.ConnLimiter
	clientCfg websocket.ClientConfig
	upgrader  gorillaws.Upgrader
}

// NewWSHandler создает обработчик WebSocket. Пустой allowedOrigins разрешает любой Origin.
func NewWSHandler(
	hub *websocket.Hub,
	wsManager *websocket.Manager,
	limiter *websocket.ConnLimiter,
	clientCfg websocket.ClientConfig,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		hub:       hub,
		wsManager: wsManager,
		limiter:   limiter,
		clientCfg: clientCfg,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   4096,
			CheckOrigin:       originChecker(allowedOrigins),
			EnableCompression: true,
		},
	}
}

// originChecker пропускает клиентов без Origin (не браузеры) и origin из списка
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		log.Printf("[WSHandler] Отклонен origin: %s", origin)
		return false
	}
}

// HandleConnection устанавливает WebSocket соединение с лентой событий
// GET /ws
func (h *WSHandler) HandleConnection(c *gin.Context) {
	ip := c.ClientIP()
	if h.limiter != nil && !h.limiter.Allow(ip) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many connection attempts"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ с ошибкой
		log.Printf("[WSHandler] Ошибка upgrade для %s: %v", ip, err)
		return
	}

	client := websocket.NewClient(h.hub, conn, ip, h.clientCfg)
	client.StartPumps(h.wsManager.HandleMessage)
}
