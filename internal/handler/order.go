package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hardback/bookstore/internal/domain/order"
	"github.com/hardback/bookstore/internal/payment"
)

type checkoutRequest struct {
	CouponCode    string `json:"couponCode" validate:"omitempty,max=64"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=cod card"`
}

type orderItemResponse struct {
	BookID    string `json:"bookId"`
	Quantity  int    `json:"quantity"`
	Kind      string `json:"kind"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	Items         []orderItemResponse `json:"items"`
	Subtotal      string              `json:"subtotal"`
	Discount      string              `json:"discount"`
	Total         string              `json:"total"`
	CouponCode    string              `json:"couponCode,omitempty"`
	PaymentMethod string              `json:"paymentMethod"`
	PaymentStatus string              `json:"paymentStatus"`
	Status        string              `json:"status"`
	CreatedAt     time.Time           `json:"createdAt"`
}

type checkoutResponse struct {
	Order       orderResponse `json:"order"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			BookID:    it.BookID,
			Quantity:  it.Quantity,
			Kind:      string(it.Kind),
			UnitPrice: money(it.UnitPrice),
			LineTotal: money(it.LineTotal),
		}
	}
	return orderResponse{
		ID:            o.ID,
		Items:         items,
		Subtotal:      money(o.Subtotal),
		Discount:      money(o.Discount),
		Total:         money(o.Total),
		CouponCode:    o.CouponCode,
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
	}
}

// Checkout places an order from the user's cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	res, err := h.orders.Checkout(r.Context(), userFrom(r.Context()).ID, order.CheckoutRequest{
		CouponCode:    req.CouponCode,
		PaymentMethod: payment.Method(req.PaymentMethod),
	})
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		Order:       toOrderResponse(res.Order),
		RedirectURL: res.RedirectURL,
	})
}

// ListOrders returns the user's order history, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForUser(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// GetOrder returns one of the user's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetForUser(r.Context(), userFrom(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// Library returns the e-books the user has purchased.
func (h *Handler) Library(w http.ResponseWriter, r *http.Request) {
	books, err := h.orders.Library(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponses(books))
}

// webhookPayload is the gateway's delivery body.
type webhookPayload struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// PaymentWebhook handles gateway payment notifications. The raw body is
// authenticated with an HMAC signature before any parsing; deliveries
// with a bad or missing signature are rejected.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		writeError(w, http.StatusNotFound, "payment gateway not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if !h.gateway.VerifyWebhook(body, r.Header.Get("X-Signature")) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil || p.Reference == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if p.Status != "paid" {
		// Non-terminal statuses are acknowledged and dropped; the order
		// stays pending until the gateway reports payment.
		zctx.From(r.Context()).Info("ignoring webhook status",
			zap.String("reference", p.Reference),
			zap.String("status", p.Status),
		)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	o, err := h.orders.ConfirmPayment(r.Context(), p.Reference)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
