package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/somasaidi/somasaidi/internal/auth"
	"github.com/somasaidi/somasaidi/internal/middleware"
	"github.com/somasaidi/somasaidi/internal/mpesa"
	"github.com/somasaidi/somasaidi/internal/payments"
	"github.com/somasaidi/somasaidi/internal/validation"
)

func initiatePayment(cfg Config, v *validatorv10.Validate) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validation.InitiatePaymentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			middleware.Fail(c, err)
			return
		}

		payment, err := cfg.Payments.Initiate(c.Request.Context(), payments.InitiateParams{
			UserID:           auth.UserID(c),
			Kind:             payments.KindQuestion,
			QuestionID:       req.QuestionID,
			Amount:           float64(req.Amount),
			PhoneNumber:      req.PhoneNumber,
			AccountReference: accountReference(req.QuestionID),
			Description:      "Homework answer payment",
		})
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Payment initiated. Check your phone to complete the transaction.",
			"data":    payment,
		})
	}
}

// accountReference fits the question ID into the statement reference field
// the customer sees.
func accountReference(questionID string) string {
	const max = 12
	ref := "Q-" + questionID
	if len(ref) > max {
		ref = ref[:max]
	}
	return ref
}

// getPayment returns the current ledger entry, reconciling pending ones
// against the gateway first. Clients poll this while the STK prompt is on
// the customer's phone.
func getPayment(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		payment, err := cfg.Payments.ReconcileByPolling(c.Request.Context(), auth.UserID(c), c.Param("id"))
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"payment":  payment,
			"canRetry": payment.CanRetry(),
		}})
	}
}

func paymentHistory(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := cfg.Payments.History(c.Request.Context(), auth.UserID(c))
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

// mpesaCallback ingests the gateway's result post. The response is always
// a success ack: a non-200 would make the gateway retry, and reconciliation
// of unknown or already-settled payments is handled internally.
func mpesaCallback(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var env mpesa.CallbackEnvelope
		if err := c.ShouldBindJSON(&env); err != nil {
			cfg.Logger.Warn("malformed mpesa callback", "error", err)
			c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
			return
		}
		cfg.Payments.ReconcileCallback(c.Request.Context(), env.Body.STKCallback)
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
	}
}
