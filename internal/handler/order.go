package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/xenking/prato-delivery/internal/domain/auth"
	"github.com/xenking/prato-delivery/internal/domain/coupon"
	"github.com/xenking/prato-delivery/internal/domain/order"
	"github.com/xenking/prato-delivery/internal/payment/pix"
)

type placeOrderRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	CouponCode      string `json:"coupon_code"`
	Payment         string `json:"payment"`
	Notes           string `json:"notes"`
	DeliveryAddress string `json:"delivery_address"`
}

type discountResponse struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// orderResponse decorates the domain order with the label the apps display.
type orderResponse struct {
	order.Order
	StatusLabel string `json:"status_label"`
}

type placeOrderResponse struct {
	Order      orderResponse     `json:"order"`
	Discount   *discountResponse `json:"discount,omitempty"`
	PixPayload string            `json:"pix_payload,omitempty"`
}

func toOrderResponse(o order.Order) orderResponse {
	return orderResponse{Order: o, StatusLabel: o.Status.Label()}
}

func toOrderResponses(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	return out
}

// placeOrder creates a new order for the authenticated customer: resolves
// products, applies an optional coupon, computes the total, and renders a PIX
// payload when that payment method is chosen.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if a.Role != auth.RoleCustomer && a.Role != auth.RoleAdmin {
		respondError(w, r, http.StatusForbidden, "only customers can place orders")
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, r, http.StatusBadRequest, "order must contain at least one item")
		return
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			respondError(w, r, http.StatusUnprocessableEntity, "item quantity must be positive")
			return
		}
	}

	payment := order.PaymentMethod(req.Payment)
	if payment == "" {
		payment = order.PaymentCash
	}
	switch payment {
	case order.PaymentCash, order.PaymentCard, order.PaymentPix:
	default:
		respondError(w, r, http.StatusBadRequest, "unknown payment method")
		return
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}
	products, err := h.products.GetByIDs(r.Context(), ids)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}

	var (
		items       = make([]order.LineItem, 0, len(req.Items))
		couponItems = make([]coupon.Item, 0, len(req.Items))
		subtotal    decimal.Decimal
		restaurant  order.Party
	)
	for _, item := range req.Items {
		i, found := byID[item.ProductID]
		if !found {
			respondError(w, r, http.StatusUnprocessableEntity, "unknown product: "+item.ProductID)
			return
		}
		p := products[i]

		if restaurant.Name == "" {
			restaurant = order.Party{
				Name:    p.Restaurant.Name,
				Address: p.Restaurant.Address,
				Phone:   p.Restaurant.Phone,
			}
		} else if restaurant.Name != p.Restaurant.Name {
			respondError(w, r, http.StatusBadRequest, "all items must belong to the same restaurant")
			return
		}

		items = append(items, order.LineItem{
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
		})
		couponItems = append(couponItems, coupon.Item{
			ProductID: p.ID,
			Price:     p.Price,
			Quantity:  item.Quantity,
		})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	var discount *discountResponse
	total := subtotal
	if req.CouponCode != "" {
		d, err := h.coupons.Validate(r.Context(), req.CouponCode, couponItems)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		total = total.Sub(d.Amount)
		if total.IsNegative() {
			total = decimal.Zero
		}
		discount = &discountResponse{Amount: d.Amount, Description: d.Description}
	}
	total = total.Add(h.deliveryFee)

	draft := order.Order{
		Customer: order.Party{
			Name:    a.Name,
			Address: req.DeliveryAddress,
			Phone:   a.Phone,
		},
		Restaurant:    restaurant,
		Items:         items,
		Total:         total,
		Notes:         req.Notes,
		Payment:       payment,
		DeliveryFee:   h.deliveryFee,
		EstimatedTime: h.estimatedTime,
	}

	id, err := h.store.Create(r.Context(), draft)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	created, err := h.store.Get(id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := placeOrderResponse{Order: toOrderResponse(created), Discount: discount}
	if payment == order.PaymentPix {
		payload, err := h.pix.Payload(id, total)
		if err != nil {
			if errors.Is(err, pix.ErrMissingKey) {
				respondError(w, r, http.StatusUnprocessableEntity, "pix payments are not available")
				return
			}
			respondDomainError(w, r, err)
			return
		}
		resp.PixPayload = payload
	}

	respondJSON(w, r, http.StatusCreated, resp)
}

// listOrders returns the orders visible to the authenticated actor: admins
// see everything, everyone else sees their own slice of the collection.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	var orders []order.Order
	switch a.Role {
	case auth.RoleAdmin:
		orders = h.store.List()
	case auth.RoleCustomer:
		orders = h.store.ListForCustomer(a.Name)
	case auth.RoleRestaurant:
		orders = h.store.ListForRestaurant(a.Name)
	case auth.RoleCourier:
		orders = h.store.ListForCourier(a.Name)
	default:
		respondError(w, r, http.StatusForbidden, "unknown role")
		return
	}

	respondJSON(w, r, http.StatusOK, toOrderResponses(orders))
}

// listAvailable serves the courier dispatch queue.
func (h *Handler) listAvailable(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if a.Role != auth.RoleCourier && a.Role != auth.RoleAdmin {
		respondError(w, r, http.StatusForbidden, "courier role required")
		return
	}

	respondJSON(w, r, http.StatusOK, toOrderResponses(h.store.ListAvailableForDelivery()))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	o, err := h.store.Get(mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !visibleTo(a, o) {
		// 404, not 403: do not leak the existence of other actors' orders.
		respondError(w, r, http.StatusNotFound, "order not found")
		return
	}

	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

func visibleTo(a auth.Actor, o order.Order) bool {
	switch a.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleCustomer:
		return o.Customer.Name == a.Name
	case auth.RoleRestaurant:
		return o.Restaurant.Name == a.Name
	case auth.RoleCourier:
		return o.AvailableForDelivery() || (o.Courier != nil && o.Courier.Name == a.Name)
	}
	return false
}

type updateStatusRequest struct {
	Status  string `json:"status"`
	Courier *struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"courier"`
}

// restaurantTargets is the subset of statuses a restaurant may move its own
// orders into. Dispatch and delivery stages belong to couriers.
var restaurantTargets = map[order.Status]bool{
	order.StatusConfirmed: true,
	order.StatusPreparing: true,
	order.StatusReady:     true,
	order.StatusCancelled: true,
}

// updateStatus advances an order's lifecycle. What a caller may do depends on
// its role: admins force any status, restaurants walk their own orders
// through preparation, customers cancel their own pending orders, couriers
// complete their own deliveries.
func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	id := mux.Vars(r)["id"]
	next := order.Status(req.Status)

	o, err := h.store.Get(id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	switch a.Role {
	case auth.RoleAdmin:
		var courier *order.Courier
		if req.Courier != nil {
			courier = &order.Courier{Name: req.Courier.Name, Phone: req.Courier.Phone}
		}
		err = h.store.SetStatus(r.Context(), id, next, courier)

	case auth.RoleRestaurant:
		if o.Restaurant.Name != a.Name {
			respondError(w, r, http.StatusForbidden, "order belongs to another restaurant")
			return
		}
		if next.Valid() && !restaurantTargets[next] {
			respondError(w, r, http.StatusForbidden, "restaurants cannot set status "+req.Status)
			return
		}
		err = h.store.Transition(r.Context(), id, next)

	case auth.RoleCustomer:
		if o.Customer.Name != a.Name {
			respondError(w, r, http.StatusNotFound, "order not found")
			return
		}
		if next != order.StatusCancelled {
			respondError(w, r, http.StatusForbidden, "customers can only cancel orders")
			return
		}
		if o.Status != order.StatusPending {
			respondError(w, r, http.StatusConflict, "order can no longer be cancelled")
			return
		}
		err = h.store.Transition(r.Context(), id, order.StatusCancelled)

	case auth.RoleCourier:
		if o.Courier == nil || o.Courier.Name != a.Name {
			respondError(w, r, http.StatusForbidden, "delivery is not assigned to you")
			return
		}
		if next != order.StatusDelivered {
			respondError(w, r, http.StatusForbidden, "couriers can only mark orders delivered")
			return
		}
		err = h.store.Transition(r.Context(), id, order.StatusDelivered)

	default:
		respondError(w, r, http.StatusForbidden, "unknown role")
		return
	}

	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	updated, err := h.store.Get(id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(updated))
}

// acceptDelivery claims a ready order for the authenticated courier. The
// store resolves races between couriers; the loser gets a conflict response.
func (h *Handler) acceptDelivery(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if a.Role != auth.RoleCourier {
		respondError(w, r, http.StatusForbidden, "courier role required")
		return
	}

	id := mux.Vars(r)["id"]
	courier := order.Courier{Name: a.Name, Phone: a.Phone}
	if err := h.store.AcceptDelivery(r.Context(), id, courier); err != nil {
		respondDomainError(w, r, err)
		return
	}

	accepted, err := h.store.Get(id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(accepted))
}
