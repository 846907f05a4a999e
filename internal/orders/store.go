package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-trader-orders/internal/aws"
	"github.com/imrishuroy/go-trader-orders/internal/logger"
)

// maxCreateAttempts bounds created_at collision retries for one owner.
const maxCreateAttempts = 5

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}

// Create puts a new order. created_at is the sort key, so two orders of one
// owner created in the same millisecond collide; the later one is moved
// forward by a millisecond and retried. The stored order is returned.
func (s *Store) Create(ctx context.Context, o Order) (Order, error) {
	for attempt := 1; ; attempt++ {
		o.StatusSortKey = EncodeStatusSortKey(o.Status, o.CreatedAt)
		_, err := s.client.PutItem(ctx, &dyn.PutItemInput{
			TableName:                &s.tableName,
			Item:                     MarshalOrder(o),
			ConditionExpression:      awsString("attribute_not_exists(#ca)"),
			ExpressionAttributeNames: map[string]string{"#ca": AttrCreatedAt},
		})
		if err == nil {
			return o, nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return Order{}, upstream("put item", err)
		}
		if attempt == maxCreateAttempts {
			return Order{}, fmt.Errorf("put item: created_at collision after %d attempts: %w", attempt, ErrUpstreamUnavailable)
		}
		logger.Debug(ctx, "created_at collision, retrying", zap.Time("created_at", o.CreatedAt))
		o.CreatedAt = o.CreatedAt.Add(time.Millisecond)
	}
}

// GetByID looks an order up through the id index. Returns (nil, nil) if the
// owner has no order with that id.
func (s *Store) GetByID(ctx context.Context, ownerID, orderID string) (*Order, error) {
	page, err := s.Query(ctx, NativeQuery{
		Index: IDIndex,
		KeyConditions: []Condition{
			Equal(AttrOwnerID, EncodeString(ownerID)),
			Equal(AttrID, EncodeString(orderID)),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, nil
	}
	o, err := UnmarshalOrder(page.Items[0])
	if err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// Query runs one native query, newest first. Filters are sent as a
// FilterExpression as well; the pager re-applies them either way.
func (s *Store) Query(ctx context.Context, q NativeQuery) (NativePage, error) {
	e := newExpression()
	keyExpr := e.and(q.KeyConditions)
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: &keyExpr,
		ScanIndexForward:       awsBool(false),
	}
	if len(q.FilterConditions) > 0 {
		input.FilterExpression = awsString(e.and(q.FilterConditions))
	}
	input.ExpressionAttributeNames = e.names
	input.ExpressionAttributeValues = e.values
	if q.Index != nil {
		input.IndexName = awsString(q.Index.Name)
	}
	if q.Limit > 0 {
		input.Limit = &q.Limit
	}
	if len(q.StartKey) > 0 {
		input.ExclusiveStartKey = q.StartKey
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return NativePage{}, upstream("query", err)
	}
	return NativePage{
		Items:        out.Items,
		LastKey:      out.LastEvaluatedKey,
		ScannedCount: int(out.ScannedCount),
	}, nil
}

// ApplyUpdate executes the instruction and returns the order as stored
// afterwards. Returns ErrStatusMismatch if the item is gone or its status moved.
func (s *Store) ApplyUpdate(ctx context.Context, u UpdateInstruction) (Order, error) {
	if len(u.Set) == 0 {
		return Order{}, errors.New("update instruction has no assignments")
	}
	updateExpr, condExpr, e := u.render()
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       u.Key(),
		UpdateExpression:          &updateExpr,
		ConditionExpression:       &condExpr,
		ExpressionAttributeNames:  e.names,
		ExpressionAttributeValues: e.values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return Order{}, ErrStatusMismatch
		}
		return Order{}, upstream("update item", err)
	}
	o, err := UnmarshalOrder(out.Attributes)
	if err != nil {
		return Order{}, fmt.Errorf("unmarshal order: %w", err)
	}
	return o, nil
}

// upstream tags a store failure with ErrUpstreamUnavailable, keeping the AWS
// error code in the message when there is one.
func upstream(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s (%s): %w: %w", op, apiErr.ErrorCode(), ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
