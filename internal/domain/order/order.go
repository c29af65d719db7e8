package order

import (
	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates how the customer pays for an order.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentPix  PaymentMethod = "pix"
)

// Party identifies one side of an order: the customer who placed it or the
// restaurant that prepares it.
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Courier identifies the delivery person assigned to an order.
type Courier struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// LineItem is a single ordered product. Items keep their insertion order and
// are priced at order time; the store never recomputes them.
type LineItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Order is a customer purchase flowing through restaurant preparation and
// courier delivery. ID, totals, and creation stamps are set once at creation
// and never touched by later mutations.
type Order struct {
	ID            string          `json:"id"`
	Customer      Party           `json:"customer"`
	Restaurant    Party           `json:"restaurant"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	CreatedDate   string          `json:"created_date"`
	CreatedTime   string          `json:"created_time"`
	Courier       *Courier        `json:"courier,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Payment       PaymentMethod   `json:"payment"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	EstimatedTime string          `json:"estimated_time"`
}

// Clone returns a deep copy of the order. Snapshots handed out by the store
// are built from clones so callers can never reach into store-owned state.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]LineItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	if o.Courier != nil {
		courier := *o.Courier
		c.Courier = &courier
	}
	return c
}

// AvailableForDelivery reports whether the order sits in the courier dispatch
// queue: prepared and not yet claimed.
func (o Order) AvailableForDelivery() bool {
	return o.Status == StatusReady && o.Courier == nil
}
