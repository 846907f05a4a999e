package orders

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Edits is a partial update; nil fields are left untouched.
type Edits struct {
	Price     *decimal.Decimal
	Quantity  *int
	ExpiresAt *time.Time
}

func (e Edits) Empty() bool {
	return e.Price == nil && e.Quantity == nil && e.ExpiresAt == nil
}

// Assignment is one SET clause.
type Assignment struct {
	Attribute string
	Value     types.AttributeValue
}

// UpdateInstruction is a single-item write keyed by (OwnerID, CreatedAt) that
// only succeeds while the stored status still equals ExpectedStatus.
type UpdateInstruction struct {
	OwnerID        string
	CreatedAt      time.Time
	Set            []Assignment
	ExpectedStatus Status
}

// Touches reports whether the instruction assigns attr.
func (u UpdateInstruction) Touches(attr string) bool {
	for _, a := range u.Set {
		if a.Attribute == attr {
			return true
		}
	}
	return false
}

// Key returns the primary key of the targeted item.
func (u UpdateInstruction) Key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrOwnerID:   EncodeString(u.OwnerID),
		AttrCreatedAt: EncodeTime(u.CreatedAt),
	}
}

// BuildUpdate emits one assignment per present edit and nothing else. It
// reports false when there is nothing to write.
func BuildUpdate(edits Edits, current Order) (UpdateInstruction, bool) {
	u := newInstruction(current)
	if edits.Price != nil {
		u.Set = append(u.Set, Assignment{AttrPrice, EncodeDecimal(*edits.Price)})
	}
	if edits.Quantity != nil {
		u.Set = append(u.Set, Assignment{AttrQuantity, EncodeInt(int64(*edits.Quantity))})
	}
	if edits.ExpiresAt != nil {
		u.Set = append(u.Set, Assignment{AttrExpiresAt, EncodeTime(*edits.ExpiresAt)})
	}
	return u, len(u.Set) > 0
}

// BuildTransition moves current to the status ev leads to, recomputing the
// status index key. Settlement also stamps completed_at.
func BuildTransition(current Order, ev Event, now time.Time) (UpdateInstruction, error) {
	next, err := NextStatus(current.Status, ev)
	if err != nil {
		return UpdateInstruction{}, err
	}
	u := newInstruction(current)
	u.Set = append(u.Set,
		Assignment{AttrStatus, EncodeEnum(next)},
		Assignment{AttrStatusSortKey, EncodeString(EncodeStatusSortKey(next, current.CreatedAt))},
	)
	if next == StatusCompleted {
		u.Set = append(u.Set, Assignment{AttrCompletedAt, EncodeTime(now)})
	}
	return u, nil
}

func newInstruction(current Order) UpdateInstruction {
	return UpdateInstruction{
		OwnerID:        current.OwnerID,
		CreatedAt:      current.CreatedAt,
		ExpectedStatus: StatusActive,
	}
}

// render produces the update and condition expressions. The item must exist
// and still carry ExpectedStatus.
func (u UpdateInstruction) render() (update, condition string, e *expression) {
	e = newExpression()
	update = "SET "
	for i, a := range u.Set {
		if i > 0 {
			update += ", "
		}
		update += e.name(a.Attribute) + " = " + e.value(a.Value)
	}
	condition = "attribute_exists(" + e.name(AttrCreatedAt) + ") AND " +
		e.condition(Equal(AttrStatus, EncodeEnum(u.ExpectedStatus)))
	return update, condition, e
}
