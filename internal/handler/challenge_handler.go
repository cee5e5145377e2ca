package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rabbitctf/rabbitctf-api/internal/handler/dto"
)

// ChallengeHandler обрабатывает запросы, связанные с задачами
type ChallengeHandler struct {
	challenges ChallengeUseCase
}

// NewChallengeHandler создает новый обработчик задач
func NewChallengeHandler(challenges ChallengeUseCase) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges}
}

// List возвращает задачи, доступные игроку
func (h *ChallengeHandler) List(c *gin.Context) {
	userID, isAdmin, ok := requireUser(c)
	if !ok {
		return
	}

	views, err := h.challenges.ListVisible(c.Request.Context(), userID, isAdmin)
	if err != nil {
		handleServiceError(c, "ChallengeHandler", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// Get возвращает задачу вместе с состоянием попыток команды
func (h *ChallengeHandler) Get(c *gin.Context) {
	userID, isAdmin, ok := requireUser(c)
	if !ok {
		return
	}
	challengeID := c.MustGet(ContextChallengeID).(uint)

	view, err := h.challenges.GetVisible(c.Request.Context(), userID, isAdmin, challengeID)
	if err != nil {
		handleServiceError(c, "ChallengeHandler", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AdminList возвращает все задачи, включая черновики
func (h *ChallengeHandler) AdminList(c *gin.Context) {
	items, err := h.challenges.ListAll(c.Request.Context())
	if err != nil {
		handleServiceError(c, "ChallengeHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAdminChallengeList(items))
}

// AdminGet возвращает задачу вместе с флагом
func (h *ChallengeHandler) AdminGet(c *gin.Context) {
	challengeID := c.MustGet(ContextChallengeID).(uint)

	item, err := h.challenges.GetForAdmin(c.Request.Context(), challengeID)
	if err != nil {
		handleServiceError(c, "ChallengeHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAdminChallengeResponse(item))
}

// AdminCreate создает задачу
func (h *ChallengeHandler) AdminCreate(c *gin.Context) {
	var req dto.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.challenges.Create(c.Request.Context(), actorFrom(c), req.ToInput())
	if err != nil {
		handleServiceError(c, "ChallengeHandler", err)
		return
	}
	c.JSON(http.StatusCreated, challenge)
}

// AdminUpdate изменяет задачу. Пустой flag оставляет прежний флаг.
func (h *ChallengeHandler) AdminUpdate(c *gin.Context) {
	challengeID := c.MustGet(ContextChallengeID).(uint)

	var req dto.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.challenges.Update(c.Request.Context(), actorFrom(c), challengeID, req.ToInput())
	if err != nil {
		handleServiceError(c, "ChallengeHandler", err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

// AdminSetVisibility публикует или скрывает задачу
func (h *ChallengeHandler) AdminSetVisibility(c *gin.Context) {
	challengeID := c.MustGet(ContextChallengeID).(uint)

	var req dto.VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.challenges.SetVisibility(c.Request.Context(), actorFrom(c), challengeID, *req.IsVisible, req.IsDraft)
	if err != nil {
		handleServiceError(c, "ChallengeHandler", err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

// ScorePreview возвращает стоимость первых решений для заданных параметров скоринга
func (h *ChallengeHandler) ScorePreview(c *gin.Context) {
	var req dto.ScorePreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, n := req.Config()
	curve, err := h.challenges.ScorePreview(cfg, n)
	if err != nil {
		handleServiceError(c, "ChallengeHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": dto.NewScorePreview(curve)})
}
