// Package subscriptions sells unlimited-question plans. The purchase
// itself rides the same payment orchestration as single questions; the
// subscription window opens only when the payment resolves as completed.
package subscriptions

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/somasaidi/somasaidi/internal/apperr"
	"github.com/somasaidi/somasaidi/internal/payments"
	"github.com/somasaidi/somasaidi/internal/users"
)

// Service owns plan purchase and the subscription lifecycle.
type Service struct {
	orch  *payments.Orchestrator
	users *users.Store
	now   func() time.Time
}

func NewService(orch *payments.Orchestrator, ustore *users.Store) *Service {
	return &Service{orch: orch, users: ustore, now: time.Now}
}

// SubscribeResult is the pending purchase handed back to the client.
type SubscribeResult struct {
	Payment *payments.Payment `json:"payment"`
	Plan    Plan              `json:"plan"`
}

// Subscribe starts a plan purchase. The caller polls the returned payment
// until it resolves; activation happens on the completion path.
func (s *Service) Subscribe(ctx context.Context, userID, planID, phoneNumber string) (*SubscribeResult, error) {
	plan, ok := PlanByID(planID)
	if !ok {
		return nil, apperr.InvalidErr("invalid plan ID", map[string]string{"planId": "unknown plan"})
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if u.HasActiveSubscription(s.now()) {
		return nil, apperr.ConflictErr("you already have an active subscription")
	}

	payment, err := s.orch.Initiate(ctx, payments.InitiateParams{
		UserID:           userID,
		Kind:             payments.KindSubscription,
		Amount:           plan.Price,
		PhoneNumber:      phoneNumber,
		AccountReference: "SUB-" + suffix(userID, 6),
		Description:      plan.Name + " subscription",
		Plan: &payments.PlanSnapshot{
			PlanID:   plan.ID,
			Name:     plan.Name,
			Price:    plan.Price,
			Duration: plan.DurationDays,
		},
	})
	if err != nil {
		return nil, err
	}
	return &SubscribeResult{Payment: payment, Plan: plan}, nil
}

// Status describes the caller's current subscription.
type Status struct {
	Status        string     `json:"status"`
	IsActive      bool       `json:"isActive"`
	Plan          *Plan      `json:"plan,omitempty"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	DaysRemaining int        `json:"daysRemaining"`
}

// Current reports the caller's subscription state.
func (s *Service) Current(ctx context.Context, userID string) (*Status, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	st := &Status{Status: users.SubInactive}
	if u == nil {
		return st, nil
	}
	if u.SubStatus != "" {
		st.Status = u.SubStatus
	}
	st.StartDate = u.SubStartDate
	st.EndDate = u.SubEndDate
	if plan, ok := PlanByID(u.SubPlanID); ok {
		st.Plan = &plan
	}
	st.IsActive = u.HasActiveSubscription(s.now())
	if st.IsActive {
		st.DaysRemaining = int(math.Ceil(u.SubEndDate.Sub(s.now()).Hours() / 24))
	}
	return st, nil
}

// CancelResult tells the client how long access continues after a cancel.
type CancelResult struct {
	Status  string     `json:"status"`
	EndDate *time.Time `json:"endDate,omitempty"`
	Message string     `json:"message"`
}

// Cancel stops renewal intent. Access continues until the paid period
// ends.
func (s *Service) Cancel(ctx context.Context, userID string) (*CancelResult, error) {
	err := s.users.CancelSubscription(ctx, userID)
	if errors.Is(err, users.ErrNotCancellable) {
		return nil, apperr.InvalidErr("no active subscription to cancel", nil)
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	res := &CancelResult{
		Status:  users.SubCancelled,
		Message: "Your subscription will remain active until the end of the current billing period",
	}
	if u != nil {
		res.EndDate = u.SubEndDate
	}
	return res, nil
}

func suffix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
