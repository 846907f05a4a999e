package orders

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const cursorSeparator = "|"

// Key is a decoded pagination cursor: the primary key of the last returned
// item plus, for a secondary index, that item's index sort value.
type Key struct {
	Index     *Index
	OwnerID   string
	CreatedAt time.Time
	SortValue types.AttributeValue
}

// Item renders the key as an ExclusiveStartKey.
func (k Key) Item() map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		AttrOwnerID:   EncodeString(k.OwnerID),
		AttrCreatedAt: EncodeTime(k.CreatedAt),
	}
	if k.Index != nil && k.SortValue != nil {
		item[k.Index.SortAttribute] = k.SortValue
	}
	return item
}

// EncodeCursor mints an opaque token resuming after item on index.
func EncodeCursor(item map[string]types.AttributeValue, index *Index) (string, error) {
	owner := DecodeString(item[AttrOwnerID])
	if owner == "" {
		return "", fmt.Errorf("cursor: item has no %s", AttrOwnerID)
	}
	createdAt, err := DecodeInt(item[AttrCreatedAt])
	if err != nil {
		return "", fmt.Errorf("cursor: %w", err)
	}
	parts := []string{index.IndexName(), owner, strconv.FormatInt(createdAt, 10)}
	if index != nil {
		raw, ok := rawScalar(item[index.SortAttribute], index.SortType)
		if !ok {
			return "", fmt.Errorf("cursor: item has no %s", index.SortAttribute)
		}
		parts = append(parts, raw)
	}
	for i, p := range parts {
		parts[i] = url.QueryEscape(p)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(parts, cursorSeparator))), nil
}

// DecodeCursor parses a token minted by EncodeCursor. A token minted for a
// different index, or any malformed token, yields ErrInvalidCursor.
func DecodeCursor(token string, index *Index) (Key, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.Split(string(raw), cursorSeparator)
	want := 3
	if index != nil {
		want = 4
	}
	if len(parts) != want {
		return Key{}, fmt.Errorf("%w: expected %d parts, got %d", ErrInvalidCursor, want, len(parts))
	}
	for i, p := range parts {
		if parts[i], err = url.QueryUnescape(p); err != nil {
			return Key{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
	}
	if parts[0] != index.IndexName() {
		return Key{}, fmt.Errorf("%w: minted for index %q", ErrInvalidCursor, parts[0])
	}
	if parts[1] == "" {
		return Key{}, fmt.Errorf("%w: empty owner", ErrInvalidCursor)
	}
	ms, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	k := Key{Index: index, OwnerID: parts[1], CreatedAt: time.UnixMilli(ms).UTC()}
	if index != nil {
		if parts[3] == "" {
			return Key{}, fmt.Errorf("%w: empty sort value", ErrInvalidCursor)
		}
		if index.SortType == SortTypeNumber {
			if _, err := strconv.ParseInt(parts[3], 10, 64); err != nil {
				return Key{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
			}
			k.SortValue = &types.AttributeValueMemberN{Value: parts[3]}
		} else {
			k.SortValue = EncodeString(parts[3])
		}
	}
	return k, nil
}

func rawScalar(av types.AttributeValue, want SortType) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, want == SortTypeString && v.Value != ""
	case *types.AttributeValueMemberN:
		return v.Value, want == SortTypeNumber
	}
	return "", false
}
