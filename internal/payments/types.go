package payments

import "time"

// Ledger statuses. Completed and failed are terminal; cancelled is
// reserved for operator tooling.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Payment kinds.
const (
	KindQuestion     = "question"
	KindSubscription = "subscription"
)

const maxRetries = 3

// PlanSnapshot freezes the plan terms at purchase time so later plan
// changes do not rewrite history.
type PlanSnapshot struct {
	PlanID   string  `dynamodbav:"plan_id" json:"planId"`
	Name     string  `dynamodbav:"name" json:"name"`
	Price    float64 `dynamodbav:"price" json:"price"`
	Duration int     `dynamodbav:"duration_days" json:"durationDays"`
}

// Payment is one ledger entry: a single charge attempt against M-Pesa.
type Payment struct {
	PaymentID         string        `dynamodbav:"payment_id" json:"paymentId"`
	UserID            string        `dynamodbav:"user_id" json:"userId"`
	Kind              string        `dynamodbav:"kind" json:"kind"`
	QuestionID        string        `dynamodbav:"question_id,omitempty" json:"questionId,omitempty"`
	Amount            float64       `dynamodbav:"amount" json:"amount"`
	Currency          string        `dynamodbav:"currency" json:"currency"`
	Status            string        `dynamodbav:"status" json:"status"`
	PhoneNumber       string        `dynamodbav:"phone_number" json:"-"`
	CheckoutRequestID string        `dynamodbav:"checkout_request_id,omitempty" json:"-"`
	MerchantRequestID string        `dynamodbav:"merchant_request_id,omitempty" json:"-"`
	ReceiptNumber     string        `dynamodbav:"receipt_number,omitempty" json:"receiptNumber,omitempty"`
	ResultCode        string        `dynamodbav:"result_code,omitempty" json:"-"`
	ResultDesc        string        `dynamodbav:"result_desc,omitempty" json:"resultDesc,omitempty"`
	Plan              *PlanSnapshot `dynamodbav:"plan,omitempty" json:"plan,omitempty"`
	RetryCount        int           `dynamodbav:"retry_count,omitempty" json:"retryCount,omitempty"`
	PaidAt            *time.Time    `dynamodbav:"paid_at,omitempty" json:"paidAt,omitempty"`
	CreatedAt         time.Time     `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt         time.Time     `dynamodbav:"updated_at" json:"updatedAt"`
}

// Terminal reports whether this entry can no longer change state.
func (p *Payment) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed || p.Status == StatusCancelled
}

// CanRetry reports whether the client may start another attempt for the
// same purchase. Informational only; retries create a fresh ledger entry.
func (p *Payment) CanRetry() bool {
	return p.Status == StatusFailed && p.RetryCount < maxRetries
}
