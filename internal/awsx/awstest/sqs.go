package awstest

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSFake records sent messages and serves them back to ReceiveMessage.
type SQSFake struct {
	mu      sync.Mutex
	nextID  int
	pending []sqstypes.Message
	Sent    []string // bodies, in send order
	Deleted []string // receipt handles
}

func NewSQSFake() *SQSFake { return &SQSFake{} }

func (f *SQSFake) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := strconv.Itoa(f.nextID)
	body := *params.MessageBody
	f.Sent = append(f.Sent, body)
	f.pending = append(f.pending, sqstypes.Message{
		MessageId:     &id,
		ReceiptHandle: &id,
		Body:          &body,
	})
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

func (f *SQSFake) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int(params.MaxNumberOfMessages)
	if n <= 0 || n > len(f.pending) {
		n = len(f.pending)
	}
	out := &sqs.ReceiveMessageOutput{Messages: f.pending[:n]}
	f.pending = f.pending[n:]
	return out, nil
}

func (f *SQSFake) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, *params.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}
