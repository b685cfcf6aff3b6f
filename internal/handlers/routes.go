// Package handlers wires the HTTP surface. Handlers bind and validate
// input, call one service method and translate the outcome; everything
// stateful lives behind the services.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/somasaidi/somasaidi/internal/auth"
	"github.com/somasaidi/somasaidi/internal/notify"
	"github.com/somasaidi/somasaidi/internal/payments"
	"github.com/somasaidi/somasaidi/internal/questions"
	"github.com/somasaidi/somasaidi/internal/subscriptions"
	"github.com/somasaidi/somasaidi/internal/validation"
)

// Config groups dependencies for the API routes.
type Config struct {
	Questions      *questions.Service
	Payments       *payments.Orchestrator
	Subscriptions  *subscriptions.Service
	Hub            *notify.Hub
	Verifier       *auth.Verifier
	Logger         *slog.Logger
	MaxUploadBytes int64
}

// Register mounts all routes on the engine.
func Register(r *gin.Engine, cfg Config) {
	v := validation.New()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// The gateway posts callbacks unauthenticated, and the plan catalogue
	// is public marketing surface.
	api.POST("/payments/mpesa/callback", mpesaCallback(cfg))
	api.GET("/subscriptions/plans", listPlans())

	authed := api.Group("")
	authed.Use(auth.Middleware(cfg.Verifier))

	q := authed.Group("/questions")
	q.POST("/submit", submitQuestion(cfg, v))
	q.GET("", listQuestions(cfg))
	q.GET("/:id", getQuestion(cfg))
	q.GET("/stats/summary", questionStats(cfg))

	p := authed.Group("/payments")
	p.POST("/initiate", initiatePayment(cfg, v))
	p.GET("/history", paymentHistory(cfg))
	p.GET("/:id", getPayment(cfg))

	s := authed.Group("/subscriptions")
	s.POST("/subscribe", subscribe(cfg, v))
	s.GET("/current", currentSubscription(cfg))
	s.POST("/cancel", cancelSubscription(cfg))

	authed.GET("/events", streamEvents(cfg))
}
