package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a menu item offered by a restaurant. Products are plain records:
// they carry no lifecycle rules and are manipulated directly by their owners.
type Product struct {
	ID         string
	Restaurant Restaurant
	Name       string
	Price      decimal.Decimal
	Category   string
	ImageURL   string
}

// Restaurant holds the restaurant contact details attached to each menu item,
// copied onto the order at placement time.
type Restaurant struct {
	Name    string
	Address string
	Phone   string
}

// Repository defines read operations for the menu catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	ListByRestaurant(ctx context.Context, restaurant string) ([]Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
