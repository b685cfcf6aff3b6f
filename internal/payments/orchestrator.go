// Package payments owns the payment ledger and the M-Pesa orchestration
// around it. Two independent observers can learn a payment's outcome, the
// gateway callback and the client-driven status poll, so every resolution
// goes through a conditional write and side effects run only for the
// writer that actually flipped the status.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/somasaidi/somasaidi/internal/apperr"
	"github.com/somasaidi/somasaidi/internal/metrics"
	"github.com/somasaidi/somasaidi/internal/mpesa"
	"github.com/somasaidi/somasaidi/internal/notify"
	"github.com/somasaidi/somasaidi/internal/questions"
	"github.com/somasaidi/somasaidi/internal/users"
)

// Gateway is the slice of the M-Pesa client the orchestrator needs.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, req mpesa.STKPushRequest) (mpesa.STKPushResponse, error)
	QuerySTKStatus(ctx context.Context, checkoutRequestID string) (mpesa.STKQueryResponse, error)
}

// JobQueue hands answered-payment work to the fulfillment pipeline.
type JobQueue interface {
	EnqueueAnswer(ctx context.Context, questionID, paymentID string) error
}

// Events receives user-facing status updates. Delivery is best effort.
type Events interface {
	Publish(userID, kind string, payload interface{})
}

// Orchestrator drives a payment from initiation through resolution.
type Orchestrator struct {
	store     *Store
	questions *questions.Store
	users     *users.Store
	gateway   Gateway
	jobs      JobQueue
	events    Events
	metrics   *metrics.Emitter
	logger    *slog.Logger
	now       func() time.Time
}

func NewOrchestrator(store *Store, qstore *questions.Store, ustore *users.Store, gateway Gateway, jobs JobQueue, events Events, em *metrics.Emitter, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		questions: qstore,
		users:     ustore,
		gateway:   gateway,
		jobs:      jobs,
		events:    events,
		metrics:   em,
		logger:    logger,
		now:       time.Now,
	}
}

// InitiateParams describes one charge attempt.
type InitiateParams struct {
	UserID           string
	Kind             string
	QuestionID       string
	Amount           float64
	PhoneNumber      string
	AccountReference string
	Description      string
	Plan             *PlanSnapshot
}

// Initiate creates a pending ledger entry and fires the STK push. An
// explicit gateway rejection resolves the entry as failed; a transport
// failure or timeout leaves it pending for the callback or the poller to
// resolve, since the push may still have reached the customer's phone.
func (o *Orchestrator) Initiate(ctx context.Context, p InitiateParams) (*Payment, error) {
	phone, err := mpesa.NormalizePhone(p.PhoneNumber)
	if err != nil {
		return nil, apperr.InvalidErr("invalid phone number", map[string]string{"phoneNumber": err.Error()})
	}

	if p.Kind == KindQuestion {
		q, err := o.questions.Get(ctx, p.QuestionID)
		if err != nil {
			return nil, apperr.Wrap(err)
		}
		if q == nil || q.UserID != p.UserID {
			return nil, apperr.NotFoundErr("question not found")
		}
		if q.PaymentStatus == questions.PaymentCompleted {
			return nil, apperr.ConflictErr("question is already paid for")
		}
	}

	now := o.now()
	payment := &Payment{
		PaymentID:   uuid.NewString(),
		UserID:      p.UserID,
		Kind:        p.Kind,
		QuestionID:  p.QuestionID,
		Amount:      p.Amount,
		Currency:    "KES",
		Status:      StatusPending,
		PhoneNumber: phone,
		Plan:        p.Plan,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.store.Create(ctx, payment); err != nil {
		return nil, apperr.Wrap(err)
	}
	if p.Kind == KindQuestion {
		if err := o.questions.MarkPaymentPending(ctx, p.QuestionID, p.Amount, now); err != nil {
			return nil, apperr.Wrap(err)
		}
	}

	resp, err := o.gateway.InitiateSTKPush(ctx, mpesa.STKPushRequest{
		PhoneNumber:      phone,
		Amount:           int(p.Amount),
		AccountReference: p.AccountReference,
		Description:      p.Description,
	})
	if err != nil {
		var rejection *mpesa.RejectionError
		if errors.As(err, &rejection) {
			o.logger.Warn("stk push rejected",
				"payment_id", payment.PaymentID, "code", rejection.Code, "desc", rejection.Description)
			o.resolveFailure(ctx, payment, rejection.Code, rejection.Description)
			o.metrics.Count(ctx, "PaymentInitiationRejected", 1, nil)
			return nil, apperr.GatewayRejectedErr("payment request was declined by M-Pesa", err)
		}
		// The push may have gone out before the connection died. Leave the
		// entry pending so reconciliation can settle it either way.
		o.logger.Error("stk push transport failure", "payment_id", payment.PaymentID, "error", err)
		return nil, apperr.GatewayUnavailableErr(err)
	}

	if err := o.store.AttachCheckout(ctx, payment.PaymentID, resp.CheckoutRequestID, resp.MerchantRequestID, now); err != nil && !errors.Is(err, ErrAlreadyResolved) {
		return nil, apperr.Wrap(err)
	}
	payment.CheckoutRequestID = resp.CheckoutRequestID
	payment.MerchantRequestID = resp.MerchantRequestID

	o.metrics.Count(ctx, "PaymentInitiated", 1, map[string]string{"Kind": p.Kind})
	o.logger.Info("stk push initiated",
		"payment_id", payment.PaymentID, "checkout_request_id", resp.CheckoutRequestID, "kind", p.Kind)
	return payment, nil
}

// ReconcileCallback applies a gateway callback. Unknown checkout IDs are
// logged and dropped; the gateway is always acked so it does not retry.
func (o *Orchestrator) ReconcileCallback(ctx context.Context, cb mpesa.STKCallback) {
	payment, err := o.store.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		o.logger.Error("callback lookup failed", "checkout_request_id", cb.CheckoutRequestID, "error", err)
		return
	}
	if payment == nil {
		o.logger.Warn("callback for unknown checkout id", "checkout_request_id", cb.CheckoutRequestID)
		return
	}

	if cb.ResultCode.Success() {
		o.resolveSuccess(ctx, payment, cb.ReceiptNumber(), string(cb.ResultCode), cb.ResultDesc)
	} else {
		o.resolveFailure(ctx, payment, string(cb.ResultCode), cb.ResultDesc)
	}
}

// ReconcileByPolling refreshes a pending payment by asking the gateway for
// its status, then returns the current ledger entry. Transport failures
// and in-flight pushes leave the entry pending.
func (o *Orchestrator) ReconcileByPolling(ctx context.Context, userID, paymentID string) (*Payment, error) {
	payment, err := o.store.Get(ctx, paymentID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if payment == nil || payment.UserID != userID {
		return nil, apperr.NotFoundErr("payment not found")
	}
	if payment.Terminal() || payment.CheckoutRequestID == "" {
		return payment, nil
	}

	resp, err := o.gateway.QuerySTKStatus(ctx, payment.CheckoutRequestID)
	if err != nil {
		// Still processing, or the gateway is unreachable. Either way the
		// entry stays pending and the client polls again.
		o.logger.Info("status query not conclusive", "payment_id", paymentID, "error", err)
		return payment, nil
	}

	if resp.ResultCode.Success() {
		// The query response carries no receipt; a late callback for the
		// same payment is a no-op and cannot add one.
		o.resolveSuccess(ctx, payment, "", string(resp.ResultCode), resp.ResultDesc)
	} else {
		// The query only ever confirms success. A non-success code can
		// race a prompt that is still on the customer's phone, so only
		// the callback may fail the entry.
		o.logger.Info("status query not successful yet",
			"payment_id", paymentID, "code", string(resp.ResultCode), "desc", resp.ResultDesc)
	}

	refreshed, err := o.store.Get(ctx, paymentID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return refreshed, nil
}

// Get returns one of the caller's ledger entries.
func (o *Orchestrator) Get(ctx context.Context, userID, paymentID string) (*Payment, error) {
	payment, err := o.store.Get(ctx, paymentID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if payment == nil || payment.UserID != userID {
		return nil, apperr.NotFoundErr("payment not found")
	}
	return payment, nil
}

// History returns the caller's payments, newest first.
func (o *Orchestrator) History(ctx context.Context, userID string) ([]Payment, error) {
	list, err := o.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return list, nil
}

// resolveSuccess settles the ledger entry and, only if this caller won the
// conditional write, runs the success side effects exactly once.
func (o *Orchestrator) resolveSuccess(ctx context.Context, p *Payment, receipt, code, desc string) {
	now := o.now()
	err := o.store.CompleteIfPending(ctx, p.PaymentID, receipt, code, desc, now)
	if errors.Is(err, ErrAlreadyResolved) {
		o.logger.Info("payment already resolved", "payment_id", p.PaymentID)
		return
	}
	if err != nil {
		o.logger.Error("failed to complete payment", "payment_id", p.PaymentID, "error", err)
		return
	}

	if err := o.users.AddSpent(ctx, p.UserID, p.Amount); err != nil {
		o.logger.Warn("failed to record spend", "user_id", p.UserID, "error", err)
	}

	switch p.Kind {
	case KindQuestion:
		o.settleQuestion(ctx, p, receipt, now)
	case KindSubscription:
		o.activateSubscription(ctx, p, now)
	}

	o.events.Publish(p.UserID, notify.KindPaymentStatus, map[string]interface{}{
		"paymentId":     p.PaymentID,
		"status":        StatusCompleted,
		"receiptNumber": receipt,
	})
	o.metrics.Count(ctx, "PaymentCompleted", 1, map[string]string{"Kind": p.Kind})
	o.logger.Info("payment completed", "payment_id", p.PaymentID, "kind", p.Kind, "receipt", receipt)
}

func (o *Orchestrator) settleQuestion(ctx context.Context, p *Payment, receipt string, now time.Time) {
	err := o.questions.MarkPaymentCompleted(ctx, p.QuestionID, receipt, now)
	if err != nil && !errors.Is(err, questions.ErrPaymentAlreadySettled) {
		o.logger.Error("failed to mark question paid", "question_id", p.QuestionID, "error", err)
		return
	}
	if err == nil {
		o.events.Publish(p.UserID, notify.KindQuestionStatus, map[string]interface{}{
			"questionId": p.QuestionID,
			"status":     questions.StatusPaidAwaitingAnswer,
		})
	}
	if err := o.jobs.EnqueueAnswer(ctx, p.QuestionID, p.PaymentID); err != nil {
		// The question stays paid_awaiting_answer and can be re-driven by
		// a redelivered or manually requeued job.
		o.logger.Error("failed to enqueue fulfillment job", "question_id", p.QuestionID, "error", err)
	}
}

func (o *Orchestrator) activateSubscription(ctx context.Context, p *Payment, now time.Time) {
	if p.Plan == nil {
		o.logger.Error("subscription payment without plan snapshot", "payment_id", p.PaymentID)
		return
	}
	end := now.AddDate(0, 0, p.Plan.Duration)
	if err := o.users.ActivateSubscription(ctx, p.UserID, p.Plan.PlanID, now, end); err != nil {
		o.logger.Error("failed to activate subscription", "user_id", p.UserID, "error", err)
		return
	}
	o.events.Publish(p.UserID, notify.KindSubscriptionStatus, map[string]interface{}{
		"planId":  p.Plan.PlanID,
		"status":  users.SubActive,
		"endDate": end.UTC().Format(time.RFC3339),
	})
}

// resolveFailure fails the ledger entry and, only if this caller won the
// conditional write, runs the failure side effects exactly once.
func (o *Orchestrator) resolveFailure(ctx context.Context, p *Payment, code, desc string) {
	now := o.now()
	err := o.store.FailIfPending(ctx, p.PaymentID, code, desc, now)
	if errors.Is(err, ErrAlreadyResolved) {
		o.logger.Info("payment already resolved", "payment_id", p.PaymentID)
		return
	}
	if err != nil {
		o.logger.Error("failed to fail payment", "payment_id", p.PaymentID, "error", err)
		return
	}

	if p.Kind == KindQuestion {
		reason := desc
		if reason == "" {
			reason = fmt.Sprintf("payment failed with code %s", code)
		}
		err := o.questions.MarkPaymentFailed(ctx, p.QuestionID, reason, now)
		if err != nil && !errors.Is(err, questions.ErrPaymentAlreadySettled) {
			o.logger.Error("failed to mark question payment failed", "question_id", p.QuestionID, "error", err)
		}
	}

	o.events.Publish(p.UserID, notify.KindPaymentStatus, map[string]interface{}{
		"paymentId":  p.PaymentID,
		"status":     StatusFailed,
		"resultDesc": desc,
	})
	o.metrics.Count(ctx, "PaymentFailed", 1, map[string]string{"Kind": p.Kind})
	o.logger.Info("payment failed", "payment_id", p.PaymentID, "code", code, "desc", desc)
}
