package fulfillment

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/somasaidi/somasaidi/internal/awsx"
)

const (
	maxMessagesPerPoll = 5
	waitTimeSeconds    = 20
)

// Worker long-polls the fulfillment queue and drives each job through the
// fulfiller. Messages are deleted only after a terminal outcome; transient
// failures leave the message for redelivery.
type Worker struct {
	sqs       awsx.SQSAPI
	queueURL  string
	fulfiller *Fulfiller
	logger    *slog.Logger
}

func NewWorker(sqsClient awsx.SQSAPI, queueURL string, fulfiller *Fulfiller, logger *slog.Logger) *Worker {
	return &Worker{
		sqs:       sqsClient,
		queueURL:  queueURL,
		fulfiller: fulfiller,
		logger:    logger,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("fulfillment worker started", "queue_url", w.queueURL)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("fulfillment worker stopping")
			return
		default:
		}
		w.poll(ctx)
	}
}

func (w *Worker) poll(ctx context.Context) {
	out, err := w.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.queueURL),
		MaxNumberOfMessages: maxMessagesPerPoll,
		WaitTimeSeconds:     waitTimeSeconds,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("receive messages failed", "error", err)
		return
	}

	for _, msg := range out.Messages {
		var job Job
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &job); err != nil {
			w.logger.Error("dropping malformed job", "error", err)
			w.delete(ctx, msg.ReceiptHandle)
			continue
		}
		if err := w.fulfiller.Fulfill(ctx, job); err != nil {
			// Leave the message in flight; the visibility timeout will
			// bring it back for another attempt.
			w.logger.Error("job failed, leaving for redelivery",
				"question_id", job.QuestionID, "correlation_id", job.CorrelationID, "error", err)
			continue
		}
		w.delete(ctx, msg.ReceiptHandle)
	}
}

func (w *Worker) delete(ctx context.Context, receiptHandle *string) {
	_, err := w.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		w.logger.Error("delete message failed", "error", err)
	}
}
