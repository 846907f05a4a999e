package orders

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Scalar codecs. Numbers, enum ordinals and timestamps are stored as N so the
// store compares them numerically; timestamps are epoch milliseconds.

func EncodeString(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

func EncodeInt(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func EncodeDecimal(d decimal.Decimal) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: d.String()}
}

func EncodeTime(t time.Time) types.AttributeValue {
	return EncodeInt(t.UnixMilli())
}

func EncodeEnum[E ~int](e E) types.AttributeValue {
	return EncodeInt(int64(e))
}

// DecodeString returns "" for absent or non-string attributes.
func DecodeString(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func DecodeInt(av types.AttributeValue) (int64, error) {
	n, ok, err := numeric(av)
	if err != nil || !ok {
		return 0, err
	}
	v, err := strconv.ParseInt(n, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode int %q: %w", n, err)
	}
	return v, nil
}

func DecodeDecimal(av types.AttributeValue) (decimal.Decimal, error) {
	n, ok, err := numeric(av)
	if err != nil || !ok {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(n)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %q: %w", n, err)
	}
	return d, nil
}

func DecodeEnum[E ~int](av types.AttributeValue) (E, error) {
	n, err := DecodeInt(av)
	return E(n), err
}

// DecodeTime never fails: absent and malformed values both decode to the zero
// time.Time, the minimum representable value.
func DecodeTime(av types.AttributeValue) time.Time {
	n, ok, err := numeric(av)
	if err != nil || !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(n, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// DecodeOptionalTime returns nil for absent and NULL attributes.
func DecodeOptionalTime(av types.AttributeValue) *time.Time {
	switch av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil
	}
	t := DecodeTime(av)
	return &t
}

func numeric(av types.AttributeValue) (string, bool, error) {
	switch v := av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return "", false, nil
	case *types.AttributeValueMemberN:
		return v.Value, true, nil
	default:
		return "", false, fmt.Errorf("expected N attribute, got %T", av)
	}
}

// orderField maps one Order field to one item attribute. encode reports false
// when the attribute must be omitted (empty key-like strings, nil timestamps).
type orderField struct {
	attr   string
	encode func(o *Order) (types.AttributeValue, bool)
	decode func(o *Order, av types.AttributeValue) error
}

func stringField(attr string, get func(o *Order) *string) orderField {
	return orderField{
		attr: attr,
		encode: func(o *Order) (types.AttributeValue, bool) {
			v := *get(o)
			return EncodeString(v), v != ""
		},
		decode: func(o *Order, av types.AttributeValue) error {
			*get(o) = DecodeString(av)
			return nil
		},
	}
}

var orderFields = []orderField{
	stringField(AttrOwnerID, func(o *Order) *string { return &o.OwnerID }),
	stringField(AttrID, func(o *Order) *string { return &o.ID }),
	stringField(AttrPortfolioID, func(o *Order) *string { return &o.PortfolioID }),
	stringField(AttrAssetSymbol, func(o *Order) *string { return &o.AssetSymbol }),
	stringField(AttrAssetName, func(o *Order) *string { return &o.AssetName }),
	stringField(AttrStatusSortKey, func(o *Order) *string { return &o.StatusSortKey }),
	{
		attr:   AttrCreatedAt,
		encode: func(o *Order) (types.AttributeValue, bool) { return EncodeTime(o.CreatedAt), true },
		decode: func(o *Order, av types.AttributeValue) error { o.CreatedAt = DecodeTime(av); return nil },
	},
	{
		attr:   AttrExpiresAt,
		encode: func(o *Order) (types.AttributeValue, bool) { return EncodeTime(o.ExpiresAt), true },
		decode: func(o *Order, av types.AttributeValue) error { o.ExpiresAt = DecodeTime(av); return nil },
	},
	{
		attr: AttrCompletedAt,
		encode: func(o *Order) (types.AttributeValue, bool) {
			if o.CompletedAt == nil {
				return nil, false
			}
			return EncodeTime(*o.CompletedAt), true
		},
		decode: func(o *Order, av types.AttributeValue) error { o.CompletedAt = DecodeOptionalTime(av); return nil },
	},
	{
		attr:   AttrOrderType,
		encode: func(o *Order) (types.AttributeValue, bool) { return EncodeEnum(o.Type), true },
		decode: func(o *Order, av types.AttributeValue) (err error) {
			o.Type, err = DecodeEnum[OrderType](av)
			return err
		},
	},
	{
		attr:   AttrAssetType,
		encode: func(o *Order) (types.AttributeValue, bool) { return EncodeEnum(o.AssetType), true },
		decode: func(o *Order, av types.AttributeValue) (err error) {
			o.AssetType, err = DecodeEnum[AssetType](av)
			return err
		},
	},
	{
		attr:   AttrStatus,
		encode: func(o *Order) (types.AttributeValue, bool) { return EncodeEnum(o.Status), true },
		decode: func(o *Order, av types.AttributeValue) (err error) {
			o.Status, err = DecodeEnum[Status](av)
			return err
		},
	},
	{
		attr:   AttrQuantity,
		encode: func(o *Order) (types.AttributeValue, bool) { return EncodeInt(int64(o.Quantity)), true },
		decode: func(o *Order, av types.AttributeValue) error {
			n, err := DecodeInt(av)
			o.Quantity = int(n)
			return err
		},
	},
	{
		attr:   AttrPrice,
		encode: func(o *Order) (types.AttributeValue, bool) { return EncodeDecimal(o.Price), true },
		decode: func(o *Order, av types.AttributeValue) (err error) {
			o.Price, err = DecodeDecimal(av)
			return err
		},
	},
}

// MarshalOrder converts an order into a DynamoDB item.
func MarshalOrder(o Order) map[string]types.AttributeValue {
	item := make(map[string]types.AttributeValue, len(orderFields))
	for _, f := range orderFields {
		if av, ok := f.encode(&o); ok {
			item[f.attr] = av
		}
	}
	return item
}

// UnmarshalOrder converts a DynamoDB item into an order. Missing attributes
// leave the zero value.
func UnmarshalOrder(item map[string]types.AttributeValue) (Order, error) {
	var o Order
	for _, f := range orderFields {
		if err := f.decode(&o, item[f.attr]); err != nil {
			return Order{}, fmt.Errorf("attribute %s: %w", f.attr, err)
		}
	}
	return o, nil
}
