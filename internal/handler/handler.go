// Package handler exposes the storefront and back office over HTTP.
// Handlers decode requests, delegate to the domain services, and map
// domain errors to status codes; no business logic lives here.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hardback/bookstore/internal/domain/auth"
	"github.com/hardback/bookstore/internal/domain/cart"
	"github.com/hardback/bookstore/internal/domain/catalog"
	"github.com/hardback/bookstore/internal/domain/coupon"
	"github.com/hardback/bookstore/internal/domain/order"
	"github.com/hardback/bookstore/internal/domain/pricing"
	"github.com/hardback/bookstore/internal/payment"
)

// Handler holds the domain dependencies for every HTTP endpoint.
type Handler struct {
	books    catalog.Repository
	wishlist catalog.WishlistRepository
	coupons  coupon.Repository
	carts    *cart.Service
	orders   *order.Service
	auth     *auth.Service
	gateway  *payment.Gateway

	validate *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
// The gateway may be nil when no card gateway is configured; the payment
// webhook then rejects every delivery.
func NewHandler(
	books catalog.Repository,
	wishlist catalog.WishlistRepository,
	coupons coupon.Repository,
	carts *cart.Service,
	orders *order.Service,
	authSvc *auth.Service,
	gateway *payment.Gateway,
) *Handler {
	return &Handler{
		books:    books,
		wishlist: wishlist,
		coupons:  coupons,
		carts:    carts,
		orders:   orders,
		auth:     authSvc,
		gateway:  gateway,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes registers every endpoint on the mux. Session and API key checks
// are applied per route here rather than in an outer middleware chain, so
// the mux stays the single place where the surface is visible.
func (h *Handler) Routes(mux *http.ServeMux) {
	// Public storefront.
	mux.HandleFunc("GET /api/books", h.ListBooks)
	mux.HandleFunc("GET /api/books/{id}", h.GetBook)
	mux.HandleFunc("GET /api/categories", h.ListCategories)

	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)

	// Customer surface, session required.
	mux.HandleFunc("GET /api/me", h.requireSession(h.Me))
	mux.HandleFunc("GET /api/cart", h.requireSession(h.GetCart))
	mux.HandleFunc("PUT /api/cart/items", h.requireSession(h.SetCartItem))
	mux.HandleFunc("DELETE /api/cart/items/{bookID}", h.requireSession(h.RemoveCartItem))
	mux.HandleFunc("DELETE /api/cart", h.requireSession(h.ClearCart))
	mux.HandleFunc("GET /api/cart/quote", h.requireSession(h.QuoteCart))
	mux.HandleFunc("POST /api/checkout", h.requireSession(h.Checkout))
	mux.HandleFunc("GET /api/orders", h.requireSession(h.ListOrders))
	mux.HandleFunc("GET /api/orders/{id}", h.requireSession(h.GetOrder))
	mux.HandleFunc("GET /api/library", h.requireSession(h.Library))
	mux.HandleFunc("GET /api/wishlist", h.requireSession(h.ListWishlist))
	mux.HandleFunc("PUT /api/wishlist/{bookID}", h.requireSession(h.AddWishlist))
	mux.HandleFunc("DELETE /api/wishlist/{bookID}", h.requireSession(h.RemoveWishlist))

	// Gateway callback, HMAC verified.
	mux.HandleFunc("POST /api/payments/webhook", h.PaymentWebhook)

	// Back office, API key required.
	mux.HandleFunc("POST /api/admin/books", h.requireAPIKey(h.UpsertBook))
	mux.HandleFunc("PUT /api/admin/books/{id}", h.requireAPIKey(h.UpsertBook))
	mux.HandleFunc("DELETE /api/admin/books/{id}", h.requireAPIKey(h.DeleteBook))
	mux.HandleFunc("GET /api/admin/coupons", h.requireAPIKey(h.ListCoupons))
	mux.HandleFunc("PUT /api/admin/coupons/{code}", h.requireAPIKey(h.UpsertCoupon))
	mux.HandleFunc("DELETE /api/admin/coupons/{code}", h.requireAPIKey(h.DeleteCoupon))
	mux.HandleFunc("GET /api/admin/orders", h.requireAPIKey(h.AdminListOrders))
	mux.HandleFunc("POST /api/admin/orders/{id}/status", h.requireAPIKey(h.AdminUpdateOrderStatus))
	mux.HandleFunc("GET /api/admin/analytics/sales", h.requireAPIKey(h.AdminSales))
}

// errorResponse is the uniform error body for every endpoint.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// readJSON decodes and validates the request body into dst. Validation
// tags on the request structs are enforced here, so handlers only see
// well-formed input.
func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// mapDomainError converts a domain error to an HTTP error response.
// Unrecognized errors log and surface as 500 without leaking internals.
func mapDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		iqErr    *pricing.InvalidQuantityError
		stockErr *pricing.InsufficientStockError
		bnpErr   *pricing.BookNotPricedError
		trErr    *order.InvalidTransitionError
	)

	switch {
	case errors.As(err, &iqErr):
		writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, stockErr.Error())
	case errors.As(err, &bnpErr):
		writeError(w, http.StatusUnprocessableEntity, bnpErr.Error())
	case errors.As(err, &trErr):
		writeError(w, http.StatusConflict, trErr.Error())

	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrExhausted),
		errors.Is(err, coupon.ErrMinimumOrderNotMet):
		writeError(w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, cart.ErrNoEbookEdition),
		errors.Is(err, payment.ErrUnsupportedMethod):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrSessionInvalid), errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())

	default:
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
