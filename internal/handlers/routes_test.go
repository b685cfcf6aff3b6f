package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/somasaidi/somasaidi/internal/auth"
	"github.com/somasaidi/somasaidi/internal/awsx/awstest"
	"github.com/somasaidi/somasaidi/internal/middleware"
	"github.com/somasaidi/somasaidi/internal/mpesa"
	"github.com/somasaidi/somasaidi/internal/notify"
	"github.com/somasaidi/somasaidi/internal/payments"
	"github.com/somasaidi/somasaidi/internal/questions"
	"github.com/somasaidi/somasaidi/internal/subscriptions"
	"github.com/somasaidi/somasaidi/internal/users"
)

type noopGateway struct{}

func (noopGateway) InitiateSTKPush(ctx context.Context, req mpesa.STKPushRequest) (mpesa.STKPushResponse, error) {
	return mpesa.STKPushResponse{CheckoutRequestID: "crid-1", ResponseCode: "0"}, nil
}

func (noopGateway) QuerySTKStatus(ctx context.Context, checkoutRequestID string) (mpesa.STKQueryResponse, error) {
	return mpesa.STKQueryResponse{}, nil
}

type noopJobs struct{}

func (noopJobs) EnqueueAnswer(ctx context.Context, questionID, paymentID string) error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *auth.Verifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := awstest.NewDynamoFake().
		AddTable("payments", "payment_id").
		AddTable("questions", "question_id").
		AddTable("users", "user_id")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := notify.NewHub()
	ustore := users.NewStore(fake, "users")
	qstore := questions.NewStore(fake, "questions")

	questionSvc := questions.NewService(qstore, ustore, nil, nil, hub, logger)
	orch := payments.NewOrchestrator(
		payments.NewStore(fake, "payments"), qstore, ustore,
		noopGateway{}, noopJobs{}, hub, nil, logger,
	)
	verifier := auth.NewVerifier("test-secret")

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler(logger))
	Register(r, Config{
		Questions:      questionSvc,
		Payments:       orch,
		Subscriptions:  subscriptions.NewService(orch, ustore),
		Hub:            hub,
		Verifier:       verifier,
		Logger:         logger,
		MaxUploadBytes: 5 << 20,
	})
	return r, verifier
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health returned %d", w.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	r, verifier := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/questions", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request returned %d, want 401", w.Code)
	}

	token, err := verifier.IssueToken("u-1", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/questions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated request returned %d: %s", w.Code, w.Body.String())
	}
}

func TestPlansArePublic(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/subscriptions/plans", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("plans returned %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "monthly") {
		t.Fatalf("plans body missing catalogue: %s", w.Body.String())
	}
}

func TestMpesaCallback_AlwaysAcks(t *testing.T) {
	r, _ := newTestRouter(t)

	// malformed body
	req := httptest.NewRequest(http.MethodPost, "/api/payments/mpesa/callback", strings.NewReader("not-json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("malformed callback returned %d, want 200", w.Code)
	}

	// unknown checkout id
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"crid-unknown","ResultCode":0,"ResultDesc":"ok"}}}`
	req = httptest.NewRequest(http.MethodPost, "/api/payments/mpesa/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("unknown-checkout callback returned %d, want 200", w.Code)
	}
}
