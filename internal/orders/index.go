package orders

// SortType is the DynamoDB scalar type of an index sort key.
type SortType string

const (
	SortTypeString SortType = "S"
	SortTypeNumber SortType = "N"
)

// Index describes a local secondary index on the orders table. All indexes
// share the owner_id partition key and project all attributes.
type Index struct {
	Name          string
	SortAttribute string
	SortType      SortType
	// Composite indexes are keyed by EncodeStatusSortKey and matched by prefix.
	Composite bool
}

var (
	IDIndex        = &Index{Name: "user-order-id-index", SortAttribute: AttrID, SortType: SortTypeString}
	StatusIndex    = &Index{Name: "user-order-status-index", SortAttribute: AttrStatusSortKey, SortType: SortTypeString, Composite: true}
	TypeIndex      = &Index{Name: "user-order-type-index", SortAttribute: AttrOrderType, SortType: SortTypeNumber}
	AssetIndex     = &Index{Name: "user-order-asset-index", SortAttribute: AttrAssetSymbol, SortType: SortTypeString}
	PortfolioIndex = &Index{Name: "user-portfolio-order-index", SortAttribute: AttrPortfolioID, SortType: SortTypeString}
)

// Indexes lists every secondary index of the orders table.
var Indexes = []*Index{IDIndex, StatusIndex, TypeIndex, AssetIndex, PortfolioIndex}

// IndexByName returns nil for "" (the base table) and unknown names.
func IndexByName(name string) *Index {
	for _, ix := range Indexes {
		if ix.Name == name {
			return ix
		}
	}
	return nil
}

// IndexName returns "" for the base table.
func (ix *Index) IndexName() string {
	if ix == nil {
		return ""
	}
	return ix.Name
}

// SelectIndex picks the access path for a list query. The most selective
// valid predicate wins: asset symbol, portfolio, status, order type. With
// none of them the base table is used and nil returned.
func SelectIndex(p Predicates) *Index {
	switch {
	case nonEmpty(p.AssetSymbol):
		return AssetIndex
	case nonEmpty(p.PortfolioID):
		return PortfolioIndex
	case p.Status != nil && p.Status.Valid():
		return StatusIndex
	case p.Type != nil && p.Type.Valid():
		return TypeIndex
	}
	return nil
}

func nonEmpty(s *string) bool { return s != nil && *s != "" }
