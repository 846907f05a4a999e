package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-trader-orders/internal/aws"
)

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// tableName: DynamoDB table name for idempotency entries.
// ttlWindow: default TTL window (e.g., 48*time.Hour)
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// ErrNotInProgress is returned by MarkFailed when the record was already
// finalised or re-claimed.
var ErrNotInProgress = errors.New("idempotency record is not in progress")

// Claim records key as IN_PROGRESS together with the request fingerprint. It
// succeeds when the key is new, when a previous record has passed its TTL but
// not yet been swept, or when the previous attempt FAILED.
// Returns (claimed=true, nil) if the caller now owns the key.
// Returns (claimed=false, nil) if another attempt holds it (caller should Get to inspect).
func (s *Store) Claim(ctx context.Context, key, fingerprint string) (bool, error) {
	now := s.nowFunc()
	rec := IdempotencyRecord{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		RequestHash:    fingerprint,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(idempotency_key) OR expires_at < :now OR #s = :failed"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":    &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			":failed": &types.AttributeValueMemberS{Value: StatusFailed},
		},
	}

	_, err = s.client.PutItem(ctx, input)
	if err != nil {
		if conditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}

	return true, nil
}

// Get reads the record with a consistent read so a replay sees the outcome
// of a claim made a moment ago. Returns (nil, nil) when the key is unknown.
func (s *Store) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            keyOf(key),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get idempotency record %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec IdempotencyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal idempotency record %s: %w", key, err)
	}
	return &rec, nil
}

// MarkDone sets status to DONE and stores the order id plus the response to
// replay for duplicates.
func (s *Store) MarkDone(ctx context.Context, key, orderID, responseBody string, responseStatus int) error {
	return s.update(ctx, key, "SET #s = :done, order_id = :oid, response_body = :rb, response_status = :rs, updated_at = :ua",
		"attribute_exists(idempotency_key)",
		map[string]types.AttributeValue{
			":done": &types.AttributeValueMemberS{Value: StatusDone},
			":oid":  &types.AttributeValueMemberS{Value: orderID},
			":rb":   &types.AttributeValueMemberS{Value: responseBody},
			":rs":   &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
		})
}

// MarkFailed releases a claim so the client may retry with the same key. Only
// an IN_PROGRESS record moves; anything else yields ErrNotInProgress.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	err := s.update(ctx, key, "SET #s = :failed, note = :n, updated_at = :ua",
		"#s = :inprogress",
		map[string]types.AttributeValue{
			":failed":     &types.AttributeValueMemberS{Value: StatusFailed},
			":n":          &types.AttributeValueMemberS{Value: note},
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
		})
	if conditionFailed(err) {
		return ErrNotInProgress
	}
	return err
}

// update applies a conditional SET to one record, stamping updated_at.
func (s *Store) update(ctx context.Context, key, set, condition string, values map[string]types.AttributeValue) error {
	values[":ua"] = &types.AttributeValueMemberS{Value: s.nowFunc().Format(time.RFC3339)}
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       keyOf(key),
		UpdateExpression:          &set,
		ConditionExpression:       &condition,
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update idempotency record %s: %w", key, err)
	}
	return nil
}

func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: key},
	}
}

func conditionFailed(err error) bool {
	var sc smithy.APIError
	return errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
