package handler

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/prato-delivery/internal/domain/product"
)

type restaurantResponse struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type productResponse struct {
	ID         string             `json:"id"`
	Restaurant restaurantResponse `json:"restaurant"`
	Name       string             `json:"name"`
	Price      decimal.Decimal    `json:"price"`
	Category   string             `json:"category"`
	ImageURL   string             `json:"image_url,omitempty"`
}

// listProducts serves the menu catalog, optionally filtered to a single
// restaurant via the ?restaurant= query parameter.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}

	var (
		items []product.Product
		err   error
	)
	if restaurant := r.URL.Query().Get("restaurant"); restaurant != "" {
		items, err = h.products.ListByRestaurant(r.Context(), restaurant)
	} else {
		items, err = h.products.List(r.Context())
	}
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	out := make([]productResponse, len(items))
	for i, p := range items {
		out[i] = h.toProductResponse(p)
	}
	respondJSON(w, r, http.StatusOK, out)
}

func (h *Handler) toProductResponse(p product.Product) productResponse {
	image := p.ImageURL
	if image != "" && h.imageBaseURL != "" && !strings.HasPrefix(image, "http") {
		image = strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(image, "/")
	}
	return productResponse{
		ID: p.ID,
		Restaurant: restaurantResponse{
			Name:    p.Restaurant.Name,
			Address: p.Restaurant.Address,
			Phone:   p.Restaurant.Phone,
		},
		Name:     p.Name,
		Price:    p.Price,
		Category: p.Category,
		ImageURL: image,
	}
}
