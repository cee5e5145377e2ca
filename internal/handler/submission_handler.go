package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rabbitctf/rabbitctf-api/internal/domain/entity"
	"github.com/rabbitctf/rabbitctf-api/internal/handler/dto"
	"github.com/rabbitctf/rabbitctf-api/internal/handler/helper"
	"github.com/rabbitctf/rabbitctf-api/internal/service"
)

const (
	// ContextChallengeID - ключ контекста для ID задачи из URL
	ContextChallengeID = "challengeID"

	defaultFeedLimit = 20
)

// SubmissionHandler обрабатывает запросы сдачи флагов и журнала попыток
type SubmissionHandler struct {
	submissions SubmissionUseCase
	events      EventUseCase
}

// NewSubmissionHandler создает новый обработчик попыток
func NewSubmissionHandler(submissions SubmissionUseCase, events EventUseCase) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, events: events}
}

// Submit принимает флаг. Отказы по правилам возвращаются с кодом 200, кроме not_found.
// POST /api/v1/submissions/submit
func (h *SubmissionHandler) Submit(c *gin.Context) {
	userID, isAdmin, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := h.events.Snapshot(c.Request.Context())
	if err != nil {
		handleServiceError(c, "SubmissionHandler", err)
		return
	}

	result, err := h.submissions.Submit(c.Request.Context(), service.SubmitCommand{
		UserID:      userID,
		IsAdmin:     isAdmin,
		ChallengeID: req.ChallengeID,
		Flag:        req.SubmittedFlag,
		ClientIP:    c.ClientIP(),
		Event:       snapshot,
	})
	if err != nil {
		handleServiceError(c, "SubmissionHandler", err)
		return
	}

	status := http.StatusOK
	if result.Status == entity.StatusNotFound {
		status = http.StatusNotFound
	}
	c.JSON(status, result)
}

// MySubmissions возвращает попытки текущего пользователя
func (h *SubmissionHandler) MySubmissions(c *gin.Context) {
	userID, _, ok := requireUser(c)
	if !ok {
		return
	}
	limit, offset := helper.Pagination(c)

	rows, err := h.submissions.MySubmissions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(c, "SubmissionHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// TeamSubmissions возвращает попытки команды текущего пользователя
func (h *SubmissionHandler) TeamSubmissions(c *gin.Context) {
	userID, _, ok := requireUser(c)
	if !ok {
		return
	}
	limit, offset := helper.Pagination(c)

	rows, err := h.submissions.TeamSubmissions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(c, "SubmissionHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ChallengeStatus возвращает счетчики попыток и блокировку по задаче
func (h *SubmissionHandler) ChallengeStatus(c *gin.Context) {
	userID, isAdmin, ok := requireUser(c)
	if !ok {
		return
	}
	challengeID := c.MustGet(ContextChallengeID).(uint)

	status, err := h.submissions.ChallengeStatus(c.Request.Context(), userID, isAdmin, challengeID)
	if err != nil {
		handleServiceError(c, "SubmissionHandler", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// FirstBloods возвращает первые решения задач, новые сверху
func (h *SubmissionHandler) FirstBloods(c *gin.Context) {
	rows, err := h.submissions.FirstBloods(c.Request.Context(), helper.Limit(c, defaultFeedLimit))
	if err != nil {
		handleServiceError(c, "SubmissionHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// SolveTimeline возвращает последние решения, новые сверху
func (h *SubmissionHandler) SolveTimeline(c *gin.Context) {
	rows, err := h.submissions.SolveTimeline(c.Request.Context(), helper.Limit(c, defaultFeedLimit))
	if err != nil {
		handleServiceError(c, "SubmissionHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// AdminAll возвращает все попытки вместе с отправленными флагами
func (h *SubmissionHandler) AdminAll(c *gin.Context) {
	limit, offset := helper.Pagination(c)

	rows, err := h.submissions.AdminAll(c.Request.Context(), limit, offset)
	if err != nil {
		handleServiceError(c, "SubmissionHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// AdminByChallenge возвращает попытки по задаче
func (h *SubmissionHandler) AdminByChallenge(c *gin.Context) {
	challengeID := c.MustGet(ContextChallengeID).(uint)
	limit, offset := helper.Pagination(c)

	rows, err := h.submissions.AdminByChallenge(c.Request.Context(), challengeID, limit, offset)
	if err != nil {
		handleServiceError(c, "SubmissionHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// AdminStats возвращает статистику попыток по задаче
func (h *SubmissionHandler) AdminStats(c *gin.Context) {
	challengeID := c.MustGet(ContextChallengeID).(uint)

	stats, err := h.submissions.Stats(c.Request.Context(), challengeID)
	if err != nil {
		handleServiceError(c, "SubmissionHandler", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
