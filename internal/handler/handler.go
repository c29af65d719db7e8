// Package handler exposes the REST API: the menu catalog, order placement,
// and the role-gated order lifecycle operations. Authentication happens in
// the security middleware; handlers read the verified actor from the request
// context and never trust caller-supplied identity fields.
package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/xenking/prato-delivery/internal/domain/coupon"
	"github.com/xenking/prato-delivery/internal/domain/order"
	"github.com/xenking/prato-delivery/internal/domain/product"
	"github.com/xenking/prato-delivery/internal/payment/pix"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
	// DeliveryFee is the flat fee added to every order total.
	DeliveryFee decimal.Decimal
	// EstimatedTime is the preparation-plus-delivery estimate stamped on new
	// orders.
	EstimatedTime string
}

// Handler wires the HTTP surface to the order store and the catalog.
type Handler struct {
	store    *order.Store
	products product.Repository
	coupons  coupon.Validator
	pix      pix.Builder

	imageBaseURL  string
	deliveryFee   decimal.Decimal
	estimatedTime string
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, store *order.Store, products product.Repository, coupons coupon.Validator, pixBuilder pix.Builder) *Handler {
	return &Handler{
		store:         store,
		products:      products,
		coupons:       coupons,
		pix:           pixBuilder,
		imageBaseURL:  cfg.ImageBaseURL,
		deliveryFee:   cfg.DeliveryFee,
		estimatedTime: cfg.EstimatedTime,
	}
}

// Register mounts all API routes on the router. The static "available" path
// is registered before the "{id}" pattern so mux does not swallow it.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)

	r.HandleFunc("/orders", h.placeOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/available", h.listAvailable).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}/status", h.updateStatus).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id}/accept", h.acceptDelivery).Methods(http.MethodPost)
}
