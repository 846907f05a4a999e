package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Item attribute names in the orders table.
const (
	AttrOwnerID       = "owner_id"   // partition key
	AttrCreatedAt     = "created_at" // sort key, epoch ms
	AttrID            = "id"
	AttrPortfolioID   = "portfolio_id"
	AttrOrderType     = "order_type"
	AttrAssetSymbol   = "asset_symbol"
	AttrAssetType     = "asset_type"
	AttrAssetName     = "asset_name"
	AttrQuantity      = "quantity"
	AttrPrice         = "price"
	AttrStatus        = "order_status"
	AttrCompletedAt   = "completed_at"
	AttrExpiresAt     = "expires_at"
	AttrStatusSortKey = "status_created_at"
)

// OrderType is stored as its ordinal.
type OrderType int

const (
	OrderTypeBuy OrderType = iota
	OrderTypeSell
)

var orderTypeNames = []string{"Buy", "Sell"}

func (t OrderType) Valid() bool { return t >= 0 && int(t) < len(orderTypeNames) }

func (t OrderType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("OrderType(%d)", int(t))
	}
	return orderTypeNames[t]
}

func (t OrderType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *OrderType) UnmarshalText(b []byte) error {
	v, ok := ParseOrderType(string(b))
	if !ok {
		return fmt.Errorf("unknown order type %q", string(b))
	}
	*t = v
	return nil
}

// ParseOrderType accepts the enum name, case-sensitive.
func ParseOrderType(s string) (OrderType, bool) {
	for i, name := range orderTypeNames {
		if name == s {
			return OrderType(i), true
		}
	}
	return 0, false
}

// Status is the order lifecycle state, stored as its ordinal.
type Status int

const (
	StatusActive Status = iota
	StatusCompleted
	StatusCancelled
	StatusExpired
)

var statusNames = []string{"Active", "Completed", "Cancelled", "Expired"}

func (s Status) Valid() bool { return s >= 0 && int(s) < len(statusNames) }

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, ok := ParseStatus(string(b))
	if !ok {
		return fmt.Errorf("unknown order status %q", string(b))
	}
	*s = v
	return nil
}

func ParseStatus(s string) (Status, bool) {
	for i, name := range statusNames {
		if name == s {
			return Status(i), true
		}
	}
	return 0, false
}

// AssetType is copied from the asset service at creation time.
type AssetType int

const (
	AssetTypeStock AssetType = iota
	AssetTypeCrypto
	AssetTypeEtf
	AssetTypeCommodity
)

var assetTypeNames = []string{"Stock", "Crypto", "Etf", "Commodity"}

func (a AssetType) Valid() bool { return a >= 0 && int(a) < len(assetTypeNames) }

func (a AssetType) String() string {
	if !a.Valid() {
		return fmt.Sprintf("AssetType(%d)", int(a))
	}
	return assetTypeNames[a]
}

func (a AssetType) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AssetType) UnmarshalText(b []byte) error {
	v, ok := ParseAssetType(string(b))
	if !ok {
		return fmt.Errorf("unknown asset type %q", string(b))
	}
	*a = v
	return nil
}

func ParseAssetType(s string) (AssetType, bool) {
	for i, name := range assetTypeNames {
		if name == s {
			return AssetType(i), true
		}
	}
	return 0, false
}

// Order represents the item stored in the Orders DynamoDB table.
// OwnerID + CreatedAt is the primary key; both are immutable.
type Order struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"-"`
	PortfolioID string          `json:"portfolioId"`
	Type        OrderType       `json:"type"`
	AssetSymbol string          `json:"assetSymbol"`
	AssetType   AssetType       `json:"assetType"`
	AssetName   string          `json:"assetName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	ExpiresAt   time.Time       `json:"expiresAt"`

	// StatusSortKey backs the status index; see EncodeStatusSortKey.
	StatusSortKey string `json:"-"`
}

// OrderOverview is an order joined with display data from other services.
type OrderOverview struct {
	Order
	PortfolioName string `json:"portfolioName,omitempty"`
}
