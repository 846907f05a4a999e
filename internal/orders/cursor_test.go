package orders

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	o := sampleOrder()
	o.OwnerID = "user|with spaces&symbols"
	o.PortfolioID = "p|1"
	item := MarshalOrder(o)

	for _, ix := range append([]*Index{nil}, Indexes...) {
		t.Run(ix.IndexName(), func(t *testing.T) {
			token, err := EncodeCursor(item, ix)
			require.NoError(t, err)

			k, err := DecodeCursor(token, ix)
			require.NoError(t, err)
			assert.Equal(t, o.OwnerID, k.OwnerID)
			assert.True(t, o.CreatedAt.Equal(k.CreatedAt))

			start := k.Item()
			assert.Equal(t, item[AttrOwnerID], start[AttrOwnerID])
			assert.Equal(t, item[AttrCreatedAt], start[AttrCreatedAt])
			if ix != nil {
				assert.Equal(t, item[ix.SortAttribute], start[ix.SortAttribute])
				assert.Len(t, start, 3)
			} else {
				assert.Len(t, start, 2)
			}
		})
	}
}

func TestDecodeCursorRejectsOtherIndex(t *testing.T) {
	token, err := EncodeCursor(MarshalOrder(sampleOrder()), AssetIndex)
	require.NoError(t, err)

	_, err = DecodeCursor(token, PortfolioIndex)
	assert.ErrorIs(t, err, ErrInvalidCursor)
	_, err = DecodeCursor(token, nil)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	cases := []struct {
		token string
		index *Index
	}{
		{"%%%", nil},
		{enc("only|two"), nil},
		{enc("|u|notanumber"), nil},
		{enc("||123"), nil},
		{enc("|u|123|extra"), nil},
		{enc("user-order-type-index|u|123|Buy"), TypeIndex},
		{enc("user-order-asset-index|u|123|"), AssetIndex},
		{enc("user-order-asset-index|u|123|%zz"), AssetIndex},
	}
	for _, tc := range cases {
		_, err := DecodeCursor(tc.token, tc.index)
		assert.ErrorIs(t, err, ErrInvalidCursor, tc.token)
	}
}

func TestEncodeCursorNeedsIndexAttribute(t *testing.T) {
	o := sampleOrder()
	o.CreatedAt = time.UnixMilli(42)
	item := MarshalOrder(o)
	delete(item, AttrPortfolioID)
	_, err := EncodeCursor(item, PortfolioIndex)
	assert.Error(t, err)
}
