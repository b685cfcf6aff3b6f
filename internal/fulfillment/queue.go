package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/somasaidi/somasaidi/internal/awsx"
)

// Job is one unit of answer-generation work, carried through SQS. The
// correlation ID ties worker logs back to the enqueue site.
type Job struct {
	QuestionID    string `json:"questionId"`
	PaymentID     string `json:"paymentId"`
	CorrelationID string `json:"correlationId"`
}

// Queue publishes fulfillment jobs.
type Queue struct {
	pub *awsx.Publisher
}

func NewQueue(pub *awsx.Publisher) *Queue {
	return &Queue{pub: pub}
}

// EnqueueAnswer schedules answer generation for a paid question.
func (q *Queue) EnqueueAnswer(ctx context.Context, questionID, paymentID string) error {
	job := Job{
		QuestionID:    questionID,
		PaymentID:     paymentID,
		CorrelationID: uuid.NewString(),
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal fulfillment job: %w", err)
	}
	return q.pub.Send(ctx, string(body), map[string]string{"kind": "answer-question"})
}
