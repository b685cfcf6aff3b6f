package questions

import (
	"math"
	"strings"
	"time"
)

// Question lifecycle statuses. A question moves strictly forward:
// received -> payment_pending -> paid_awaiting_answer -> processing,
// then answered or failed.
const (
	StatusReceived           = "received"
	StatusPaymentPending     = "payment_pending"
	StatusPaidAwaitingAnswer = "paid_awaiting_answer"
	StatusProcessing         = "processing"
	StatusAnswered           = "answered"
	StatusFailed             = "failed"
)

// Payment sub-states tracked on the question itself.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Submission types.
const (
	SubmissionText  = "text"
	SubmissionImage = "image"
)

// Answer is the generated solution attached to an answered question.
type Answer struct {
	Explanation     string    `dynamodbav:"explanation" json:"explanation"`
	Steps           []string  `dynamodbav:"steps" json:"steps"`
	AdditionalNotes string    `dynamodbav:"additional_notes" json:"additionalNotes,omitempty"`
	GeneratedAt     time.Time `dynamodbav:"generated_at" json:"generatedAt"`
}

// Question is the stored record for one homework submission.
type Question struct {
	QuestionID     string  `dynamodbav:"question_id" json:"questionId"`
	UserID         string  `dynamodbav:"user_id" json:"userId"`
	QuestionText   string  `dynamodbav:"question_text" json:"questionText"`
	SubmissionType string  `dynamodbav:"submission_type" json:"submissionType"`
	ImageURL       string  `dynamodbav:"image_url,omitempty" json:"imageUrl,omitempty"`
	GradeLevel     string  `dynamodbav:"grade_level" json:"gradeLevel"`
	Subject        string  `dynamodbav:"subject" json:"subject"`
	Status         string  `dynamodbav:"status" json:"status"`
	Answer         *Answer `dynamodbav:"answer,omitempty" json:"answer,omitempty"`

	PaymentStatus  string     `dynamodbav:"payment_status" json:"paymentStatus"`
	PaymentAmount  float64    `dynamodbav:"payment_amount" json:"paymentAmount"`
	PaymentReceipt string     `dynamodbav:"payment_receipt,omitempty" json:"paymentReceipt,omitempty"`
	PaidAt         *time.Time `dynamodbav:"paid_at,omitempty" json:"paidAt,omitempty"`

	OCRText       string  `dynamodbav:"ocr_text,omitempty" json:"-"`
	OCRConfidence float64 `dynamodbav:"ocr_confidence,omitempty" json:"-"`

	ErrorMessage string    `dynamodbav:"error_message,omitempty" json:"errorMessage,omitempty"`
	CreatedAt    time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}

// EstimateCost prices a question in KES. Longer questions and secondary
// school material cost more, with a hard cap.
func EstimateCost(text, gradeLevel string) float64 {
	cost := 5.0
	if len(text) > 100 {
		cost *= 1.5
	}
	if strings.HasPrefix(gradeLevel, "form") {
		cost *= 1.5
	}
	cost = math.Ceil(cost)
	if cost > 10 {
		cost = 10
	}
	return cost
}
