package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hardback/bookstore/internal/domain/catalog"
	"github.com/hardback/bookstore/internal/domain/coupon"
	"github.com/hardback/bookstore/internal/domain/order"
)

type bookUpsertRequest struct {
	ID              string  `json:"id" validate:"omitempty,max=64"`
	Title           string  `json:"title" validate:"required,max=500"`
	Author          string  `json:"author" validate:"max=200"`
	Description     string  `json:"description"`
	Category        string  `json:"category" validate:"max=100"`
	CoverURL        string  `json:"coverUrl" validate:"omitempty,url"`
	Price           string  `json:"price" validate:"required"`
	DiscountedPrice *string `json:"discountedPrice"`
	EbookPrice      *string `json:"ebookPrice"`
	EbookDiscounted *string `json:"ebookDiscounted"`
	Stock           int     `json:"stock" validate:"min=0"`
}

func parseMoney(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}

func parseMoneyPtr(s *string) (*decimal.Decimal, bool) {
	if s == nil {
		return nil, true
	}
	d, ok := parseMoney(*s)
	if !ok {
		return nil, false
	}
	return &d, true
}

// UpsertBook creates or updates a catalog entry. POST generates the ID
// when absent; PUT takes it from the path.
func (h *Handler) UpsertBook(w http.ResponseWriter, r *http.Request) {
	var req bookUpsertRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = req.ID
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "book id required")
		return
	}

	price, ok := parseMoney(req.Price)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid price")
		return
	}
	discounted, ok := parseMoneyPtr(req.DiscountedPrice)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid discountedPrice")
		return
	}
	ebookPrice, ok := parseMoneyPtr(req.EbookPrice)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ebookPrice")
		return
	}
	ebookDiscounted, ok := parseMoneyPtr(req.EbookDiscounted)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid ebookDiscounted")
		return
	}

	b := &catalog.Book{
		ID:              id,
		Title:           req.Title,
		Author:          req.Author,
		Description:     req.Description,
		Category:        req.Category,
		CoverURL:        req.CoverURL,
		Price:           price,
		DiscountedPrice: discounted,
		EbookPrice:      ebookPrice,
		EbookDiscounted: ebookDiscounted,
		Stock:           req.Stock,
	}
	if err := h.books.Upsert(r.Context(), b); err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(*b))
}

// DeleteBook removes a catalog entry.
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.books.Delete(r.Context(), r.PathValue("id")); err != nil {
		mapDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type couponUpsertRequest struct {
	DiscountPercent string     `json:"discountPercent" validate:"required"`
	MaxDiscount     string     `json:"maxDiscount" validate:"omitempty"`
	MinOrderValue   string     `json:"minOrderValue" validate:"omitempty"`
	UsageLimit      int        `json:"usageLimit" validate:"min=0"`
	ValidFrom       *time.Time `json:"validFrom"`
	ValidUntil      *time.Time `json:"validUntil"`
	Active          bool       `json:"active"`
	Category        string     `json:"category" validate:"max=100"`
}

type couponResponse struct {
	Code            string     `json:"code"`
	DiscountPercent string     `json:"discountPercent"`
	MaxDiscount     string     `json:"maxDiscount"`
	MinOrderValue   string     `json:"minOrderValue"`
	UsageLimit      int        `json:"usageLimit"`
	UsedCount       int        `json:"usedCount"`
	ValidFrom       *time.Time `json:"validFrom,omitempty"`
	ValidUntil      *time.Time `json:"validUntil,omitempty"`
	Active          bool       `json:"active"`
	Category        string     `json:"category,omitempty"`
}

func toCouponResponse(rule *coupon.Rule) couponResponse {
	return couponResponse{
		Code:            rule.Code,
		DiscountPercent: rule.DiscountPercent.String(),
		MaxDiscount:     money(rule.MaxDiscount),
		MinOrderValue:   money(rule.MinOrderValue),
		UsageLimit:      rule.UsageLimit,
		UsedCount:       rule.UsedCount,
		ValidFrom:       rule.ValidFrom,
		ValidUntil:      rule.ValidUntil,
		Active:          rule.Active,
		Category:        rule.Category,
	}
}

// ListCoupons returns every coupon rule.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	rules, err := h.coupons.List(r.Context())
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	out := make([]couponResponse, len(rules))
	for i := range rules {
		out[i] = toCouponResponse(&rules[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// UpsertCoupon creates or updates a rule. The usage counter is preserved
// across updates.
func (h *Handler) UpsertCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponUpsertRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	percent, err := decimal.NewFromString(req.DiscountPercent)
	if err != nil || percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		writeError(w, http.StatusBadRequest, "discountPercent must be between 0 and 100")
		return
	}

	maxDiscount := decimal.Zero
	if req.MaxDiscount != "" {
		var ok bool
		if maxDiscount, ok = parseMoney(req.MaxDiscount); !ok {
			writeError(w, http.StatusBadRequest, "invalid maxDiscount")
			return
		}
	}
	minOrder := decimal.Zero
	if req.MinOrderValue != "" {
		var ok bool
		if minOrder, ok = parseMoney(req.MinOrderValue); !ok {
			writeError(w, http.StatusBadRequest, "invalid minOrderValue")
			return
		}
	}

	rule := &coupon.Rule{
		Code:            r.PathValue("code"),
		DiscountPercent: percent,
		MaxDiscount:     maxDiscount,
		MinOrderValue:   minOrder,
		UsageLimit:      req.UsageLimit,
		ValidFrom:       req.ValidFrom,
		ValidUntil:      req.ValidUntil,
		Active:          req.Active,
		Category:        req.Category,
	}
	if err := h.coupons.Upsert(r.Context(), rule); err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(rule))
}

// DeleteCoupon removes a rule.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), r.PathValue("code")); err != nil {
		mapDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminListOrders returns recent orders, optionally filtered by ?status=.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := h.orders.List(r.Context(), order.ListFilter{
		Status: order.Status(r.URL.Query().Get("status")),
		Limit:  limit,
	})
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

type statusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PROCESSING SHIPPED DELIVERED CANCELLED"`
}

// AdminUpdateOrderStatus transitions an order through its lifecycle.
// Illegal transitions get 409.
func (h *Handler) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), order.Status(req.Status))
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type salesBucketResponse struct {
	Day      time.Time `json:"day"`
	Orders   int       `json:"orders"`
	Revenue  string    `json:"revenue"`
	Discount string    `json:"discount"`
}

// AdminSales returns per-day sales totals for the last ?days= days
// (default 30).
func (h *Handler) AdminSales(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}

	since := time.Now().AddDate(0, 0, -days)
	buckets, err := h.orders.Sales(r.Context(), since)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}

	out := make([]salesBucketResponse, len(buckets))
	for i, b := range buckets {
		out[i] = salesBucketResponse{
			Day:      b.Day,
			Orders:   b.Orders,
			Revenue:  money(b.Revenue),
			Discount: money(b.Discount),
		}
	}
	writeJSON(w, http.StatusOK, out)
}
