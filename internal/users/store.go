package users

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

// ErrNotCancellable is returned when a cancel targets a user without an
// active subscription.
var ErrNotCancellable = errors.New("users: no active subscription to cancel")

// Store keeps per-user aggregates in DynamoDB. Counter updates are upserts
// so a row appears the first time a user does anything.
type Store struct {
	db    awsx.DynamoDBAPI
	table string
}

func NewStore(db awsx.DynamoDBAPI, table string) *Store {
	return &Store{db: db, table: table}
}

func (s *Store) key(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

// Get returns the user's row, or nil when the user has no activity yet.
func (s *Store) Get(ctx context.Context, userID string) (*User, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var u User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

// RecordQuestion bumps the question counter and refreshes the activity
// timestamp.
func (s *Store) RecordQuestion(ctx context.Context, userID string, now time.Time) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              s.key(userID),
		UpdateExpression: aws.String("ADD total_questions :one SET last_active_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":now": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("record question: %w", err)
	}
	return nil
}

// RecordAnswer bumps the answered counter.
func (s *Store) RecordAnswer(ctx context.Context, userID string) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              s.key(userID),
		UpdateExpression: aws.String("ADD answered_questions :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

// AddSpent adds a completed payment amount to the lifetime spend total.
func (s *Store) AddSpent(ctx context.Context, userID string, amount float64) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              s.key(userID),
		UpdateExpression: aws.String("ADD total_spent :amt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":amt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%g", amount)},
		},
	})
	if err != nil {
		return fmt.Errorf("add spent: %w", err)
	}
	return nil
}

// ActivateSubscription opens a subscription window for the user. A repeat
// activation overwrites the current window.
func (s *Store) ActivateSubscription(ctx context.Context, userID, planID string, start, end time.Time) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(userID),
		UpdateExpression: aws.String(
			"SET sub_status = :st, sub_plan_id = :plan, sub_start_date = :from, sub_end_date = :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st":   &types.AttributeValueMemberS{Value: SubActive},
			":plan": &types.AttributeValueMemberS{Value: planID},
			":from": &types.AttributeValueMemberS{Value: start.UTC().Format(time.RFC3339)},
			":to":   &types.AttributeValueMemberS{Value: end.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}
	return nil
}

// CancelSubscription flips an active subscription to cancelled. The window
// dates stay in place so access runs until the paid period ends.
func (s *Store) CancelSubscription(ctx context.Context, userID string) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(userID),
		UpdateExpression:    aws.String("SET sub_status = :cancelled"),
		ConditionExpression: aws.String("sub_status = :active"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cancelled": &types.AttributeValueMemberS{Value: SubCancelled},
			":active":    &types.AttributeValueMemberS{Value: SubActive},
		},
	})
	if err != nil {
		if awsx.IsConditionalCheckFailed(err) {
			return ErrNotCancellable
		}
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return nil
}
