package orders

import (
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// DefaultLookbackYears bounds a list query without createdFromDate.
const DefaultLookbackYears = 10

// Predicates are the optional filters of a list query. OwnerID is mandatory.
type Predicates struct {
	OwnerID       string
	PortfolioID   *string
	Type          *OrderType
	AssetSymbol   *string
	AssetType     *AssetType
	Status        *Status
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	CompletedFrom *time.Time
	CompletedTo   *time.Time
}

// WithDefaultCreatedFrom fills a missing CreatedFrom with CreatedTo (or now)
// minus DefaultLookbackYears.
func (p Predicates) WithDefaultCreatedFrom(now time.Time) Predicates {
	if p.CreatedFrom != nil {
		return p
	}
	base := now
	if p.CreatedTo != nil {
		base = *p.CreatedTo
	}
	from := base.AddDate(-DefaultLookbackYears, 0, 0)
	p.CreatedFrom = &from
	return p
}

// Operator is a comparison supported by both key conditions and filters.
type Operator int

const (
	OpEqual Operator = iota
	OpBeginsWith
	OpGreaterOrEqual
	OpLessOrEqual
	OpBetween
)

// Condition is a single attribute comparison. Between takes two values, every
// other operator one.
type Condition struct {
	Attribute string
	Op        Operator
	Values    []types.AttributeValue
}

func Equal(attr string, v types.AttributeValue) Condition {
	return Condition{Attribute: attr, Op: OpEqual, Values: []types.AttributeValue{v}}
}

func BeginsWith(attr, prefix string) Condition {
	return Condition{Attribute: attr, Op: OpBeginsWith, Values: []types.AttributeValue{EncodeString(prefix)}}
}

func AtLeast(attr string, v types.AttributeValue) Condition {
	return Condition{Attribute: attr, Op: OpGreaterOrEqual, Values: []types.AttributeValue{v}}
}

func AtMost(attr string, v types.AttributeValue) Condition {
	return Condition{Attribute: attr, Op: OpLessOrEqual, Values: []types.AttributeValue{v}}
}

func Between(attr string, lo, hi types.AttributeValue) Condition {
	return Condition{Attribute: attr, Op: OpBetween, Values: []types.AttributeValue{lo, hi}}
}

// Matches evaluates the condition against an item the way the store would.
// A missing attribute or a type mismatch never matches.
func (c Condition) Matches(item map[string]types.AttributeValue) bool {
	av, ok := item[c.Attribute]
	if !ok || len(c.Values) == 0 {
		return false
	}
	switch c.Op {
	case OpEqual:
		cmp, ok := compareValues(av, c.Values[0])
		return ok && cmp == 0
	case OpBeginsWith:
		s, ok := av.(*types.AttributeValueMemberS)
		return ok && strings.HasPrefix(s.Value, DecodeString(c.Values[0]))
	case OpGreaterOrEqual:
		cmp, ok := compareValues(av, c.Values[0])
		return ok && cmp >= 0
	case OpLessOrEqual:
		cmp, ok := compareValues(av, c.Values[0])
		return ok && cmp <= 0
	case OpBetween:
		if len(c.Values) < 2 {
			return false
		}
		lo, okLo := compareValues(av, c.Values[0])
		hi, okHi := compareValues(av, c.Values[1])
		return okLo && okHi && lo >= 0 && hi <= 0
	}
	return false
}

// MatchesAll reports whether item satisfies every condition.
func MatchesAll(conds []Condition, item map[string]types.AttributeValue) bool {
	for _, c := range conds {
		if !c.Matches(item) {
			return false
		}
	}
	return true
}

func compareValues(a, b types.AttributeValue) (int, bool) {
	switch x := a.(type) {
	case *types.AttributeValueMemberS:
		y, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.Value, y.Value), true
	case *types.AttributeValueMemberN:
		y, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		dx, err := decimal.NewFromString(x.Value)
		if err != nil {
			return 0, false
		}
		dy, err := decimal.NewFromString(y.Value)
		if err != nil {
			return 0, false
		}
		return dx.Cmp(dy), true
	}
	return 0, false
}

// Partition splits predicates into key conditions, answered natively by the
// chosen index, and filter conditions applied to whatever the key range
// yields. The owner equality is always a key condition. On the base table the
// created-at range is the sort-key condition; on a secondary index the
// predicate on the index sort attribute is, and created-at becomes a filter.
func Partition(p Predicates, index *Index) (key, filter []Condition) {
	key = []Condition{Equal(AttrOwnerID, EncodeString(p.OwnerID))}

	place := func(ix *Index, c Condition) {
		if index != nil && index == ix {
			key = append(key, c)
			return
		}
		filter = append(filter, c)
	}

	if c, ok := createdRange(p); ok {
		if index == nil {
			key = append(key, c)
		} else {
			filter = append(filter, c)
		}
	}
	if nonEmpty(p.AssetSymbol) {
		place(AssetIndex, Equal(AttrAssetSymbol, EncodeString(*p.AssetSymbol)))
	}
	if nonEmpty(p.PortfolioID) {
		place(PortfolioIndex, Equal(AttrPortfolioID, EncodeString(*p.PortfolioID)))
	}
	if p.Status != nil {
		if index == StatusIndex {
			key = append(key, BeginsWith(AttrStatusSortKey, StatusSortKeyPrefix(*p.Status)))
		} else {
			filter = append(filter, Equal(AttrStatus, EncodeEnum(*p.Status)))
		}
	}
	if p.Type != nil {
		place(TypeIndex, Equal(AttrOrderType, EncodeEnum(*p.Type)))
	}
	if p.AssetType != nil {
		filter = append(filter, Equal(AttrAssetType, EncodeEnum(*p.AssetType)))
	}
	if p.CompletedFrom != nil {
		filter = append(filter, AtLeast(AttrCompletedAt, EncodeTime(*p.CompletedFrom)))
	}
	if p.CompletedTo != nil {
		filter = append(filter, AtMost(AttrCompletedAt, EncodeTime(*p.CompletedTo)))
	}
	return key, filter
}

func createdRange(p Predicates) (Condition, bool) {
	switch {
	case p.CreatedFrom != nil && p.CreatedTo != nil:
		return Between(AttrCreatedAt, EncodeTime(*p.CreatedFrom), EncodeTime(*p.CreatedTo)), true
	case p.CreatedFrom != nil:
		return AtLeast(AttrCreatedAt, EncodeTime(*p.CreatedFrom)), true
	case p.CreatedTo != nil:
		return AtMost(AttrCreatedAt, EncodeTime(*p.CreatedTo)), true
	}
	return Condition{}, false
}

// expression renders conditions into DynamoDB expression syntax, registering
// placeholders on the shared name/value maps.
type expression struct {
	names  map[string]string
	values map[string]types.AttributeValue
	attrs  map[string]string
}

func newExpression() *expression {
	return &expression{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
		attrs:  map[string]string{},
	}
}

func (e *expression) name(attr string) string {
	if ph, ok := e.attrs[attr]; ok {
		return ph
	}
	ph := "#n" + strconv.Itoa(len(e.attrs))
	e.attrs[attr] = ph
	e.names[ph] = attr
	return ph
}

func (e *expression) value(av types.AttributeValue) string {
	ph := ":v" + strconv.Itoa(len(e.values))
	e.values[ph] = av
	return ph
}

func (e *expression) condition(c Condition) string {
	n := e.name(c.Attribute)
	switch c.Op {
	case OpBeginsWith:
		return "begins_with(" + n + ", " + e.value(c.Values[0]) + ")"
	case OpGreaterOrEqual:
		return n + " >= " + e.value(c.Values[0])
	case OpLessOrEqual:
		return n + " <= " + e.value(c.Values[0])
	case OpBetween:
		return n + " BETWEEN " + e.value(c.Values[0]) + " AND " + e.value(c.Values[1])
	default:
		return n + " = " + e.value(c.Values[0])
	}
}

func (e *expression) and(conds []Condition) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, e.condition(c))
	}
	return strings.Join(parts, " AND ")
}
