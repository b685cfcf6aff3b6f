package payments

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

const (
	checkoutIndex = "checkout_request_id-index"
	userIndex     = "user_id-index"
)

// ErrAlreadyResolved is returned when a completion or failure lands on a
// ledger entry that is no longer pending. The first writer won; callers
// must not repeat side effects.
var ErrAlreadyResolved = errors.New("payments: entry already resolved")

// Store persists the payment ledger in DynamoDB, keyed by payment_id with
// GSIs on checkout_request_id (callback lookups) and user_id (history).
type Store struct {
	db    awsx.DynamoDBAPI
	table string
}

func NewStore(db awsx.DynamoDBAPI, table string) *Store {
	return &Store{db: db, table: table}
}

func (s *Store) key(paymentID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"payment_id": &types.AttributeValueMemberS{Value: paymentID},
	}
}

// Create inserts a new pending ledger entry.
func (s *Store) Create(ctx context.Context, p *Payment) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(payment_id)"),
	})
	if err != nil {
		return fmt.Errorf("put payment: %w", err)
	}
	return nil
}

// Get returns the ledger entry, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, paymentID string) (*Payment, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(paymentID),
	})
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var p Payment
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payment: %w", err)
	}
	return &p, nil
}

// GetByCheckoutRequestID resolves the gateway's checkout ID back to our
// ledger entry. Returns nil when nothing matches.
func (s *Store) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*Payment, error) {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(checkoutIndex),
		KeyConditionExpression: aws.String("checkout_request_id = :crid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":crid": &types.AttributeValueMemberS{Value: checkoutRequestID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query payment by checkout id: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var p Payment
	if err := attributevalue.UnmarshalMap(out.Items[0], &p); err != nil {
		return nil, fmt.Errorf("unmarshal payment: %w", err)
	}
	return &p, nil
}

// ListByUser returns the user's payment history, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Payment, error) {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(userIndex),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("query payments by user: %w", err)
	}
	list := make([]Payment, 0, len(out.Items))
	for _, item := range out.Items {
		var p Payment
		if err := attributevalue.UnmarshalMap(item, &p); err != nil {
			return nil, fmt.Errorf("unmarshal payment: %w", err)
		}
		list = append(list, p)
	}
	return list, nil
}

// AttachCheckout records the gateway correlation IDs on a pending entry
// once the STK push is accepted.
func (s *Store) AttachCheckout(ctx context.Context, paymentID, checkoutRequestID, merchantRequestID string, now time.Time) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(paymentID),
		UpdateExpression: aws.String(
			"SET checkout_request_id = :crid, merchant_request_id = :mrid, updated_at = :now"),
		ConditionExpression:      aws.String("#s = :pending"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":crid":    &types.AttributeValueMemberS{Value: checkoutRequestID},
			":mrid":    &types.AttributeValueMemberS{Value: merchantRequestID},
			":pending": &types.AttributeValueMemberS{Value: StatusPending},
			":now":     &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		if awsx.IsConditionalCheckFailed(err) {
			return ErrAlreadyResolved
		}
		return fmt.Errorf("attach checkout: %w", err)
	}
	return nil
}

// CompleteIfPending settles the entry exactly once. Whichever of the
// callback and the poller runs this first wins; the loser gets
// ErrAlreadyResolved and must skip side effects.
func (s *Store) CompleteIfPending(ctx context.Context, paymentID, receipt, resultCode, resultDesc string, now time.Time) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(paymentID),
		UpdateExpression: aws.String(
			"SET #s = :completed, receipt_number = :receipt, result_code = :rc, result_desc = :rd, paid_at = :now, updated_at = :now"),
		ConditionExpression:      aws.String("#s = :pending"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: StatusCompleted},
			":pending":   &types.AttributeValueMemberS{Value: StatusPending},
			":receipt":   &types.AttributeValueMemberS{Value: receipt},
			":rc":        &types.AttributeValueMemberS{Value: resultCode},
			":rd":        &types.AttributeValueMemberS{Value: resultDesc},
			":now":       &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		if awsx.IsConditionalCheckFailed(err) {
			return ErrAlreadyResolved
		}
		return fmt.Errorf("complete payment: %w", err)
	}
	return nil
}

// FailIfPending resolves the entry as failed exactly once and bumps the
// retry counter shown to the client.
func (s *Store) FailIfPending(ctx context.Context, paymentID, resultCode, resultDesc string, now time.Time) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(paymentID),
		UpdateExpression: aws.String(
			"SET #s = :failed, result_code = :rc, result_desc = :rd, updated_at = :now ADD retry_count :one"),
		ConditionExpression:      aws.String("#s = :pending"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":  &types.AttributeValueMemberS{Value: StatusFailed},
			":pending": &types.AttributeValueMemberS{Value: StatusPending},
			":rc":      &types.AttributeValueMemberS{Value: resultCode},
			":rd":      &types.AttributeValueMemberS{Value: resultDesc},
			":one":     &types.AttributeValueMemberN{Value: "1"},
			":now":     &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		if awsx.IsConditionalCheckFailed(err) {
			return ErrAlreadyResolved
		}
		return fmt.Errorf("fail payment: %w", err)
	}
	return nil
}
