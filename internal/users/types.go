package users

import "time"

// Subscription statuses
const (
	SubInactive  = "inactive"
	SubActive    = "active"
	SubCancelled = "cancelled"
)

// User is the per-owner row in the users table, keyed by the identifier the
// auth verifier vouches for. Rows are created lazily by the first counter
// update. Profile fields live outside this service.
type User struct {
	UserID            string     `dynamodbav:"user_id"`
	TotalQuestions    int        `dynamodbav:"total_questions,omitempty"`
	AnsweredQuestions int        `dynamodbav:"answered_questions,omitempty"`
	TotalSpent        float64    `dynamodbav:"total_spent,omitempty"`
	LastActiveAt      time.Time  `dynamodbav:"last_active_at,omitempty"`
	SubStatus         string     `dynamodbav:"sub_status,omitempty"`
	SubPlanID         string     `dynamodbav:"sub_plan_id,omitempty"`
	SubStartDate      *time.Time `dynamodbav:"sub_start_date,omitempty"`
	SubEndDate        *time.Time `dynamodbav:"sub_end_date,omitempty"`
}

// HasActiveSubscription reports whether the subscription window covers t.
// Cancelled subscriptions keep their window (the client surfaces "active
// until period end") but no longer block a new subscribe.
func (u *User) HasActiveSubscription(t time.Time) bool {
	if u == nil || u.SubEndDate == nil {
		return false
	}
	return u.SubStatus == SubActive && t.Before(*u.SubEndDate)
}
