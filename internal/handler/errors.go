package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rabbitctf/rabbitctf-api/internal/middleware"
	apperrors "github.com/rabbitctf/rabbitctf-api/internal/pkg/errors"
	"github.com/rabbitctf/rabbitctf-api/internal/service"
	"github.com/rabbitctf/rabbitctf-api/internal/service/lock"
)

// handleServiceError преобразует ошибку сервиса в HTTP ответ
func handleServiceError(c *gin.Context, component string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, lock.ErrLockTimeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Submission is being processed, retry shortly"})
	default:
		log.Printf("[%s] Внутренняя ошибка: %v", component, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// currentUser возвращает пользователя, установленного RequireAuth
func currentUser(c *gin.Context) (userID uint, isAdmin bool, ok bool) {
	v, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return 0, false, false
	}
	userID, ok = v.(uint)
	return userID, c.GetBool(middleware.ContextIsAdmin), ok
}

// actorFrom собирает автора действия для журнала аудита
func actorFrom(c *gin.Context) service.Actor {
	userID, isAdmin, _ := currentUser(c)
	return service.Actor{UserID: userID, IsAdmin: isAdmin, IP: c.ClientIP()}
}

// requireUser пишет 401, если пользователь не установлен
func requireUser(c *gin.Context) (uint, bool, bool) {
	userID, isAdmin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false, false
	}
	return userID, isAdmin, true
}
