package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NativeQuery is one round trip against the store. Results come newest first.
type NativeQuery struct {
	Index            *Index
	KeyConditions    []Condition
	FilterConditions []Condition
	Limit            int32
	StartKey         map[string]types.AttributeValue
}

// NativePage is what one round trip yielded. An empty LastKey means the key
// range is exhausted.
type NativePage struct {
	Items        []map[string]types.AttributeValue
	LastKey      map[string]types.AttributeValue
	ScannedCount int
}

// Querier runs a single native query.
type Querier interface {
	Query(ctx context.Context, q NativeQuery) (NativePage, error)
}

type PageRequest struct {
	Index            *Index
	KeyConditions    []Condition
	FilterConditions []Condition
	PageSize         int
	Cursor           *Key
}

type Page struct {
	Items      []map[string]types.AttributeValue
	NextCursor string
}

// Pager assembles pages of exactly PageSize filtered items. The store applies
// its limit before filtering, so a page may take several round trips.
type Pager struct {
	querier Querier
	metrics PageMetrics
}

func NewPager(q Querier, metrics PageMetrics) *Pager {
	if metrics == nil {
		metrics = NopPageMetrics{}
	}
	return &Pager{querier: q, metrics: metrics}
}

// FetchPage runs round trips sequentially until PageSize items survive the
// filters or the store is exhausted.
func (p *Pager) FetchPage(ctx context.Context, req PageRequest) (Page, error) {
	if req.PageSize <= 0 {
		return Page{}, errors.New("page size must be positive")
	}
	var start map[string]types.AttributeValue
	if req.Cursor != nil {
		start = req.Cursor.Item()
	}

	stats := PageStats{Index: req.Index.IndexName()}
	var items []map[string]types.AttributeValue
	exhausted := false
	for {
		out, err := p.querier.Query(ctx, NativeQuery{
			Index:            req.Index,
			KeyConditions:    req.KeyConditions,
			FilterConditions: req.FilterConditions,
			Limit:            int32(req.PageSize),
			StartKey:         start,
		})
		if err != nil {
			return Page{}, fmt.Errorf("query orders: %w", err)
		}
		stats.RoundTrips++
		stats.Scanned += out.ScannedCount
		for _, it := range out.Items {
			if MatchesAll(req.FilterConditions, it) {
				items = append(items, it)
			}
		}
		if len(out.LastKey) == 0 {
			exhausted = true
			break
		}
		if len(items) >= req.PageSize {
			break
		}
		start = out.LastKey
	}

	truncated := len(items) > req.PageSize
	if truncated {
		items = items[:req.PageSize]
	}
	stats.Returned = len(items)
	p.metrics.ObservePage(ctx, stats)

	page := Page{Items: items}
	if (truncated || !exhausted) && len(items) > 0 {
		token, err := EncodeCursor(items[len(items)-1], req.Index)
		if err != nil {
			return Page{}, err
		}
		page.NextCursor = token
	}
	return page, nil
}
