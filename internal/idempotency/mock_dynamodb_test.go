package idempotency

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a very small in-memory mock for PutItem/GetItem/UpdateItem used in unit tests.
// It understands only the conditions issued by Store.
type simpleMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	getCalls    int
	updateCalls int
	putErr      error
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	keyAttr := params.Item["idempotency_key"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	if existing, ok := m.table[k]; ok && params.ConditionExpression != nil &&
		strings.HasPrefix(*params.ConditionExpression, "attribute_not_exists(idempotency_key)") {
		if !claimable(existing, params.ExpressionAttributeValues) {
			// simulate conditional failure
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

// claimable mirrors "expires_at < :now OR #s = :failed".
func claimable(item, values map[string]types.AttributeValue) bool {
	if st, ok := item["status"].(*types.AttributeValueMemberS); ok && st.Value == StatusFailed {
		return true
	}
	exp, ok := item["expires_at"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	now := values[":now"].(*types.AttributeValueMemberN)
	e, _ := strconv.ParseInt(exp.Value, 10, 64)
	n, _ := strconv.ParseInt(now.Value, 10, 64)
	return e < n
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	keyAttr := params.Key["idempotency_key"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	keyAttr := params.Key["idempotency_key"]
	if keyAttr == nil {
		return nil, errors.New("missing key")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	item, ok := m.table[k]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if want, ok := params.ExpressionAttributeValues[":inprogress"]; ok {
		st, _ := item["status"].(*types.AttributeValueMemberS)
		if st == nil || st.Value != want.(*types.AttributeValueMemberS).Value {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	// very naive update: copy the known placeholders onto their attributes
	fields := map[string]string{
		":rb": "response_body", ":rs": "response_status", ":ua": "updated_at",
		":oid": "order_id", ":n": "note", ":done": "status", ":failed": "status",
	}
	for ph, attr := range fields {
		if v, ok := params.ExpressionAttributeValues[ph]; ok {
			item[attr] = v
		}
	}
	m.table[k] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *simpleMock) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return nil, errors.New("query not supported by idempotency mock")
}
