package questions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/somasaidi/somasaidi/internal/awsx"
)

const userIndex = "user_id-index"

var (
	// ErrStatusMismatch is returned by compare-and-set transitions when the
	// question is no longer in the expected status. Callers treat it as
	// "someone else already moved this question".
	ErrStatusMismatch = errors.New("questions: status changed concurrently")

	// ErrPaymentAlreadySettled is returned when a payment completion lands
	// on a question whose payment is no longer pending.
	ErrPaymentAlreadySettled = errors.New("questions: payment already settled")
)

// Store persists questions in DynamoDB, keyed by question_id with a GSI
// on user_id for per-user listings.
type Store struct {
	db    awsx.DynamoDBAPI
	table string
}

func NewStore(db awsx.DynamoDBAPI, table string) *Store {
	return &Store{db: db, table: table}
}

func (s *Store) key(questionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"question_id": &types.AttributeValueMemberS{Value: questionID},
	}
}

// Put inserts a new question. Fails if the ID already exists.
func (s *Store) Put(ctx context.Context, q *Question) error {
	item, err := attributevalue.MarshalMap(q)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(question_id)"),
	})
	if err != nil {
		return fmt.Errorf("put question: %w", err)
	}
	return nil
}

// Get returns the question, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, questionID string) (*Question, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(questionID),
	})
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var q Question
	if err := attributevalue.UnmarshalMap(out.Item, &q); err != nil {
		return nil, fmt.Errorf("unmarshal question: %w", err)
	}
	return &q, nil
}

// ListByUser returns the user's questions, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int32) ([]Question, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(userIndex),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(limit)
	}
	out, err := s.db.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("query questions by user: %w", err)
	}
	list := make([]Question, 0, len(out.Items))
	for _, item := range out.Items {
		var q Question
		if err := attributevalue.UnmarshalMap(item, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		list = append(list, q)
	}
	return list, nil
}

// MarkPaymentPending records that an STK push went out for this question.
func (s *Store) MarkPaymentPending(ctx context.Context, questionID string, amount float64, now time.Time) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(questionID),
		UpdateExpression: aws.String(
			"SET #s = :status, payment_status = :pstatus, payment_amount = :amount, updated_at = :now"),
		ConditionExpression:      aws.String("attribute_exists(question_id)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: StatusPaymentPending},
			":pstatus": &types.AttributeValueMemberS{Value: PaymentPending},
			":amount":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%g", amount)},
			":now":     &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("mark payment pending: %w", err)
	}
	return nil
}

// MarkPaymentCompleted settles the question's payment exactly once. The
// write is guarded on the pending sub-state so a duplicate settlement from
// a late callback or a poll is a no-op at the caller's discretion.
func (s *Store) MarkPaymentCompleted(ctx context.Context, questionID, receipt string, now time.Time) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(questionID),
		UpdateExpression: aws.String(
			"SET #s = :status, payment_status = :pstatus, payment_receipt = :receipt, paid_at = :now, updated_at = :now"),
		ConditionExpression:      aws.String("payment_status = :pending"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: StatusPaidAwaitingAnswer},
			":pstatus": &types.AttributeValueMemberS{Value: PaymentCompleted},
			":receipt": &types.AttributeValueMemberS{Value: receipt},
			":pending": &types.AttributeValueMemberS{Value: PaymentPending},
			":now":     &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		if awsx.IsConditionalCheckFailed(err) {
			return ErrPaymentAlreadySettled
		}
		return fmt.Errorf("mark payment completed: %w", err)
	}
	return nil
}

// MarkPaymentFailed records a failed charge attempt. The question stays
// retriable so the user can initiate a fresh payment.
func (s *Store) MarkPaymentFailed(ctx context.Context, questionID, reason string, now time.Time) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(questionID),
		UpdateExpression: aws.String(
			"SET payment_status = :pstatus, error_message = :reason, updated_at = :now"),
		ConditionExpression: aws.String("payment_status = :pending"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pstatus": &types.AttributeValueMemberS{Value: PaymentFailed},
			":reason":  &types.AttributeValueMemberS{Value: reason},
			":pending": &types.AttributeValueMemberS{Value: PaymentPending},
			":now":     &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		if awsx.IsConditionalCheckFailed(err) {
			return ErrPaymentAlreadySettled
		}
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}

// BeginProcessing claims the question for answer generation. Only one
// claimant wins; the rest get ErrStatusMismatch.
func (s *Store) BeginProcessing(ctx context.Context, questionID string, now time.Time) error {
	return s.transition(ctx, questionID, StatusPaidAwaitingAnswer, StatusProcessing, now, nil)
}

// SetAnswer attaches the generated answer and finishes the question.
func (s *Store) SetAnswer(ctx context.Context, questionID string, ans *Answer, now time.Time) error {
	av, err := attributevalue.Marshal(ans)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	return s.transition(ctx, questionID, StatusProcessing, StatusAnswered, now, map[string]types.AttributeValue{
		"answer": av,
	})
}

// SetFailed marks answer generation as terminally failed.
func (s *Store) SetFailed(ctx context.Context, questionID, reason string, now time.Time) error {
	return s.transition(ctx, questionID, StatusProcessing, StatusFailed, now, map[string]types.AttributeValue{
		"error_message": &types.AttributeValueMemberS{Value: reason},
	})
}

// transition performs a compare-and-set status move, optionally writing
// extra attributes in the same update.
func (s *Store) transition(ctx context.Context, questionID, from, to string, now time.Time, extra map[string]types.AttributeValue) error {
	expr := "SET #s = :to, updated_at = :now"
	values := map[string]types.AttributeValue{
		":to":       &types.AttributeValueMemberS{Value: to},
		":expected": &types.AttributeValueMemberS{Value: from},
		":now":      &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
	}
	for name, av := range extra {
		placeholder := ":" + name
		expr += fmt.Sprintf(", %s = %s", name, placeholder)
		values[placeholder] = av
	}
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.key(questionID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("#s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if awsx.IsConditionalCheckFailed(err) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("transition question %s -> %s: %w", from, to, err)
	}
	return nil
}
