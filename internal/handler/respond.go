package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/go-faster/errors"

	"github.com/xenking/prato-delivery/internal/domain/coupon"
	"github.com/xenking/prato-delivery/internal/domain/order"
)

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Error("Encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, code int, message string) {
	respondJSON(w, r, code, errorResponse{Code: code, Message: message})
}

// respondDomainError maps domain errors onto HTTP status codes. Unrecognized
// errors become opaque 500s; the details stay in the log.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var itErr *order.IllegalTransitionError

	switch {
	case errors.Is(err, order.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrUnknownStatus):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &itErr):
		respondError(w, r, http.StatusConflict, itErr.Error())
	case errors.Is(err, order.ErrNotReady):
		respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrDeliveryTaken):
		respondError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponUsageLimitReached):
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		zctx.From(r.Context()).Error("Unhandled domain error", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}
