package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/somasaidi/somasaidi/internal/auth"
	"github.com/somasaidi/somasaidi/internal/middleware"
	"github.com/somasaidi/somasaidi/internal/subscriptions"
	"github.com/somasaidi/somasaidi/internal/validation"
)

func listPlans() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": subscriptions.Plans()})
	}
}

func subscribe(cfg Config, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validation.SubscribeRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			middleware.Fail(c, err)
			return
		}
		res, err := cfg.Subscriptions.Subscribe(c.Request.Context(), auth.UserID(c), req.PlanID, req.PhoneNumber)
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Subscription payment initiated. Check your phone to complete the transaction.",
			"data":    res,
		})
	}
}

func currentSubscription(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := cfg.Subscriptions.Current(c.Request.Context(), auth.UserID(c))
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": st})
	}
}

func cancelSubscription(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := cfg.Subscriptions.Cancel(c.Request.Context(), auth.UserID(c))
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Subscription cancelled successfully",
			"data":    res,
		})
	}
}
