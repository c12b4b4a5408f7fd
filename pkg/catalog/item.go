package catalog

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Kind is the inventory kind of an item.
type Kind string

const (
	// Retail items are counted: inventory is a quantity.
	Retail Kind = "Retail"
	// Produce items are flagged: inventory is an availability marker.
	Produce Kind = "Produce"
)

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == Retail || k == Produce
}

// AvailableFlag is the only availability marker that means "in stock" for
// Produce items. Comparison is exact and case-sensitive.
const AvailableFlag = "Y"

// Item is a purchasable product.
type Item struct {
	ID         string          `json:"_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Image      string          `json:"image,omitempty"`
	Category   string          `json:"category"`
	Type       Kind            `json:"type,omitempty"`
	VendorID   string          `json:"vendorId,omitempty"`
	VendorName string          `json:"vendorName,omitempty"`
}

// WithVendor returns a copy of the item bound to the given vendor.
func (i Item) WithVendor(vendorID, vendorName string) Item {
	i.VendorID = vendorID
	if vendorName != "" {
		i.VendorName = vendorName
	}
	return i
}

// InventoryValue is a vendor's stock of an item. Both slots are kept as raw
// JSON so "present and numeric" and "present and exactly Y" can be told apart
// from absent, null or mistyped values.
type InventoryValue struct {
	Quantity    json.RawMessage `json:"quantity,omitempty"`
	IsAvailable json.RawMessage `json:"isAvailable,omitempty"`
}

// Count returns the quantity when it is present and a JSON number.
func (v InventoryValue) Count() (decimal.Decimal, bool) {
	raw := bytes.TrimSpace(v.Quantity)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Flag returns the availability marker when it is present and a JSON string.
func (v InventoryValue) Flag() (string, bool) {
	raw := bytes.TrimSpace(v.IsAvailable)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// QuantityValue builds a Retail inventory value.
func QuantityValue(n int) InventoryValue {
	raw, _ := json.Marshal(n)
	return InventoryValue{Quantity: raw}
}

// FlagValue builds a Produce inventory value.
func FlagValue(flag string) InventoryValue {
	raw, _ := json.Marshal(flag)
	return InventoryValue{IsAvailable: raw}
}

// VendorOffer is one vendor carrying an item, with its stock.
type VendorOffer struct {
	ID             string          `json:"_id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price,omitempty"`
	InventoryValue InventoryValue  `json:"inventoryValue"`
}
