package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

var seedBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seedOrders builds n orders for owner, one minute apart, cycling through
// statuses, types, symbols and two portfolios.
func seedOrders(owner string, n int) []Order {
	symbols := []string{"AAPL", "BTC", "SPY"}
	assetTypes := []AssetType{AssetTypeStock, AssetTypeCrypto, AssetTypeEtf}
	portfolios := []string{"p-1", "p-2"}
	out := make([]Order, 0, n)
	for i := 0; i < n; i++ {
		created := seedBase.Add(time.Duration(i) * time.Minute)
		status := Status(i % 4)
		o := Order{
			ID:            fmt.Sprintf("%s-%03d", owner, i),
			OwnerID:       owner,
			PortfolioID:   portfolios[(i/2)%2],
			Type:          OrderType(i % 2),
			AssetSymbol:   symbols[i%3],
			AssetType:     assetTypes[i%3],
			AssetName:     symbols[i%3] + " Inc",
			Quantity:      i + 1,
			Price:         decimal.NewFromInt(int64(100 + i)),
			Status:        status,
			CreatedAt:     created,
			ExpiresAt:     created.Add(DefaultExpiry),
			StatusSortKey: EncodeStatusSortKey(status, created),
		}
		if status == StatusCompleted {
			c := created.Add(time.Hour)
			o.CompletedAt = &c
		}
		out = append(out, o)
	}
	return out
}

// memStore is an in-memory Repository that mimics DynamoDB query semantics:
// key conditions select the range, Limit caps evaluated items before the
// filter runs, and LastKey is returned whenever the limit was reached.
type memStore struct {
	mu       sync.Mutex
	items    []map[string]types.AttributeValue
	queries  []NativeQuery
	updates  []UpdateInstruction
	creates  int
	queryErr error
}

func newMemStore(orders ...Order) *memStore {
	m := &memStore{}
	for _, o := range orders {
		m.items = append(m.items, MarshalOrder(o))
	}
	return m
}

func (m *memStore) Query(_ context.Context, q NativeQuery) (NativePage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.queryErr != nil {
		return NativePage{}, m.queryErr
	}

	sortAttr := AttrCreatedAt
	if q.Index != nil {
		sortAttr = q.Index.SortAttribute
	}
	var rng []map[string]types.AttributeValue
	for _, it := range m.items {
		if _, ok := it[sortAttr]; ok && MatchesAll(q.KeyConditions, it) {
			rng = append(rng, it)
		}
	}
	sort.SliceStable(rng, func(i, j int) bool { return newerFirst(rng[i], rng[j], sortAttr) })

	start := 0
	if len(q.StartKey) > 0 {
		start = len(rng)
		for i, it := range rng {
			if samePrimaryKey(it, q.StartKey) {
				start = i + 1
				break
			}
		}
	}
	n := len(rng) - start
	if q.Limit > 0 && int(q.Limit) < n {
		n = int(q.Limit)
	}
	evaluated := rng[start : start+n]

	page := NativePage{ScannedCount: len(evaluated)}
	for _, it := range evaluated {
		if MatchesAll(q.FilterConditions, it) {
			page.Items = append(page.Items, it)
		}
	}
	if q.Limit > 0 && len(evaluated) == int(q.Limit) {
		last := evaluated[len(evaluated)-1]
		page.LastKey = map[string]types.AttributeValue{
			AttrOwnerID:   last[AttrOwnerID],
			AttrCreatedAt: last[AttrCreatedAt],
			sortAttr:      last[sortAttr],
		}
	}
	return page, nil
}

func (m *memStore) Create(_ context.Context, o Order) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	o.StatusSortKey = EncodeStatusSortKey(o.Status, o.CreatedAt)
	m.items = append(m.items, MarshalOrder(o))
	return o, nil
}

func (m *memStore) GetByID(_ context.Context, ownerID, orderID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if DecodeString(it[AttrOwnerID]) == ownerID && DecodeString(it[AttrID]) == orderID {
			o, err := UnmarshalOrder(it)
			return &o, err
		}
	}
	return nil, nil
}

func (m *memStore) ApplyUpdate(_ context.Context, u UpdateInstruction) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
	key := u.Key()
	for _, it := range m.items {
		if !samePrimaryKey(it, key) {
			continue
		}
		if !Equal(AttrStatus, EncodeEnum(u.ExpectedStatus)).Matches(it) {
			return Order{}, ErrStatusMismatch
		}
		for _, a := range u.Set {
			it[a.Attribute] = a.Value
		}
		return UnmarshalOrder(it)
	}
	return Order{}, ErrStatusMismatch
}

func newerFirst(a, b map[string]types.AttributeValue, sortAttr string) bool {
	if c, _ := compareValues(a[sortAttr], b[sortAttr]); c != 0 {
		return c > 0
	}
	c, _ := compareValues(a[AttrCreatedAt], b[AttrCreatedAt])
	return c > 0
}

func samePrimaryKey(a, b map[string]types.AttributeValue) bool {
	return Equal(AttrOwnerID, a[AttrOwnerID]).Matches(b) && Equal(AttrCreatedAt, a[AttrCreatedAt]).Matches(b)
}

type recordingPageMetrics struct {
	stats []PageStats
}

func (r *recordingPageMetrics) ObservePage(_ context.Context, s PageStats) {
	r.stats = append(r.stats, s)
}
