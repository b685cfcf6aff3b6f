package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/somasaidi/somasaidi/internal/awsx/awstest"
)

func newTestStore() *Store {
	fake := awstest.NewDynamoFake().AddTable("users", "user_id")
	return NewStore(fake, "users")
}

func TestStore_CountersUpsertRow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	// no row yet
	u, err := s.Get(ctx, "u-1")
	if err != nil || u != nil {
		t.Fatalf("expected nil for unknown user, got %+v err %v", u, err)
	}

	if err := s.RecordQuestion(ctx, "u-1", now); err != nil {
		t.Fatalf("record question: %v", err)
	}
	if err := s.RecordQuestion(ctx, "u-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("record question: %v", err)
	}
	if err := s.RecordAnswer(ctx, "u-1"); err != nil {
		t.Fatalf("record answer: %v", err)
	}
	if err := s.AddSpent(ctx, "u-1", 10); err != nil {
		t.Fatalf("add spent: %v", err)
	}
	if err := s.AddSpent(ctx, "u-1", 7.5); err != nil {
		t.Fatalf("add spent: %v", err)
	}

	u, err = s.Get(ctx, "u-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.TotalQuestions != 2 || u.AnsweredQuestions != 1 || u.TotalSpent != 17.5 {
		t.Fatalf("unexpected counters: %+v", u)
	}
}

func TestStore_SubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)

	if err := s.CancelSubscription(ctx, "u-1"); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("cancel without subscription expected ErrNotCancellable, got %v", err)
	}

	if err := s.ActivateSubscription(ctx, "u-1", "monthly", start, end); err != nil {
		t.Fatalf("activate: %v", err)
	}

	u, err := s.Get(ctx, "u-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.SubStatus != SubActive || u.SubPlanID != "monthly" {
		t.Fatalf("unexpected subscription: %+v", u)
	}
	if !u.HasActiveSubscription(start.AddDate(0, 0, 15)) {
		t.Fatalf("window should cover mid-period")
	}
	if u.HasActiveSubscription(end.Add(time.Hour)) {
		t.Fatalf("window should not cover past end date")
	}

	if err := s.CancelSubscription(ctx, "u-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	u, _ = s.Get(ctx, "u-1")
	if u.SubStatus != SubCancelled {
		t.Fatalf("status = %q, want cancelled", u.SubStatus)
	}
	if u.SubEndDate == nil || !u.SubEndDate.Equal(end) {
		t.Fatalf("cancel must keep the window end: %+v", u.SubEndDate)
	}

	if err := s.CancelSubscription(ctx, "u-1"); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("repeat cancel expected ErrNotCancellable, got %v", err)
	}
}
