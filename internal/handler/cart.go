package handler

import (
	"net/http"

	"github.com/hardback/bookstore/internal/domain/cart"
	"github.com/hardback/bookstore/internal/domain/pricing"
)

type cartItemRequest struct {
	BookID   string `json:"bookId" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Kind     string `json:"kind" validate:"omitempty,oneof=physical ebook"`
}

type cartItemResponse struct {
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity"`
	Kind     string `json:"kind"`
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
}

type quoteResponse struct {
	Subtotal   string `json:"subtotal"`
	Discount   string `json:"discount"`
	Total      string `json:"total"`
	CouponCode string `json:"couponCode,omitempty"`
	CouponErr  string `json:"couponError,omitempty"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	items := make([]cartItemResponse, len(c.Items))
	for i, it := range c.Items {
		items[i] = cartItemResponse{
			BookID:   it.BookID,
			Quantity: it.Quantity,
			Kind:     string(it.Kind),
		}
	}
	return cartResponse{Items: items}
}

// GetCart returns the user's cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// SetCartItem adds a line or replaces its quantity.
func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	line := pricing.Line{
		BookID:   req.BookID,
		Quantity: req.Quantity,
		Kind:     pricing.ItemKind(req.Kind),
	}
	if err := h.carts.SetItem(r.Context(), userFrom(r.Context()).ID, line); err != nil {
		mapDomainError(w, r, err)
		return
	}

	c, err := h.carts.Get(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// RemoveCartItem deletes one (book, kind) line. Kind defaults to physical
// and is selected with ?kind=ebook.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	kind := pricing.ItemKind(r.URL.Query().Get("kind"))
	err := h.carts.RemoveItem(r.Context(), userFrom(r.Context()).ID, r.PathValue("bookID"), kind)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), userFrom(r.Context()).ID); err != nil {
		mapDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QuoteCart prices the cart with an optional ?coupon= code. A rejected
// coupon does not fail the request; the totals fall back to the
// undiscounted subtotal and the rejection reason is included.
func (h *Handler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	res, err := h.orders.Quote(r.Context(), userFrom(r.Context()).ID, r.URL.Query().Get("coupon"))
	if err != nil {
		mapDomainError(w, r, err)
		return
	}

	resp := quoteResponse{
		Subtotal:   money(res.Quote.Subtotal),
		Discount:   money(res.Quote.Discount),
		Total:      money(res.Quote.Total),
		CouponCode: res.Quote.CouponCode,
	}
	if res.CouponErr != nil {
		resp.CouponErr = res.CouponErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
