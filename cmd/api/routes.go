package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rabbitctf/rabbitctf-api/internal/handler"
	"github.com/rabbitctf/rabbitctf-api/internal/middleware"
)

type routeHandlers struct {
	submissions *handler.SubmissionHandler
	challenges  *handler.ChallengeHandler
	scoreboard  *handler.ScoreboardHandler
	events      *handler.EventHandler
	ws          *handler.WSHandler

	auth        *middleware.AuthMiddleware
	rateLimiter *middleware.RateLimiter
	submitLimit middleware.RateLimitConfig
}

func setupRoutes(router *gin.Engine, h routeHandlers, allowedOrigins []string) {
	corsConfig := cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || allowedOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", h.ws.HandleConnection)

	challengeID := middleware.ExtractUintParam("id", handler.ContextChallengeID)
	requireAuth := h.auth.RequireAuth()
	adminOnly := h.auth.AdminOnly()

	api := router.Group("/api/v1")
	{
		submissions := api.Group("/submissions")
		{
			submissions.GET("/first-bloods", h.submissions.FirstBloods)
			submissions.GET("/solve-timeline", h.submissions.SolveTimeline)

			authed := submissions.Group("", requireAuth)
			authed.POST("/submit", h.rateLimiter.LimitByUser(h.submitLimit), h.submissions.Submit)
			authed.GET("/my-submissions", h.submissions.MySubmissions)
			authed.GET("/team-submissions", h.submissions.TeamSubmissions)
			authed.GET("/challenge/:id/status", challengeID, h.submissions.ChallengeStatus)

			admin := submissions.Group("/admin", requireAuth, adminOnly)
			admin.GET("/all", h.submissions.AdminAll)
			admin.GET("/challenge/:id", challengeID, h.submissions.AdminByChallenge)
			admin.GET("/stats/challenge/:id", challengeID, h.submissions.AdminStats)
		}

		challenges := api.Group("/challenges", requireAuth)
		{
			challenges.GET("/", h.challenges.List)
			challenges.GET("/:id", challengeID, h.challenges.Get)
		}

		scoreboard := api.Group("/scoreboard")
		{
			scoreboard.GET("/", h.scoreboard.Get)
			scoreboard.GET("/team/:id", middleware.ExtractUintParam("id", "teamID"), h.scoreboard.TeamRow)
		}

		api.GET("/event/status", h.events.Status)

		admin := api.Group("/admin", requireAuth, adminOnly)
		{
			admin.GET("/challenges", h.challenges.AdminList)
			admin.POST("/challenges", h.challenges.AdminCreate)
			admin.POST("/challenges/score-preview", h.challenges.ScorePreview)
			admin.GET("/challenges/:id", challengeID, h.challenges.AdminGet)
			admin.PUT("/challenges/:id", challengeID, h.challenges.AdminUpdate)
			admin.PUT("/challenges/:id/visibility", challengeID, h.challenges.AdminSetVisibility)

			admin.GET("/event/config", h.events.GetConfig)
			admin.PUT("/event/config", h.events.UpdateConfig)
			admin.GET("/audit", h.events.AuditLog)

			admin.GET("/scoreboard/export", h.scoreboard.Export)
		}
	}
}
