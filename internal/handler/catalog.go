package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hardback/bookstore/internal/domain/catalog"
)

// bookResponse is the wire shape of a catalog entry. Monetary fields are
// fixed-point strings; optional prices are omitted when absent.
type bookResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Description     string  `json:"description,omitempty"`
	Category        string  `json:"category,omitempty"`
	CoverURL        string  `json:"coverUrl,omitempty"`
	Price           string  `json:"price"`
	DiscountedPrice *string `json:"discountedPrice,omitempty"`
	EbookPrice      *string `json:"ebookPrice,omitempty"`
	EbookDiscounted *string `json:"ebookDiscounted,omitempty"`
	Stock           int     `json:"stock"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func toBookResponse(b catalog.Book) bookResponse {
	return bookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		Description:     b.Description,
		Category:        b.Category,
		CoverURL:        b.CoverURL,
		Price:           money(b.Price),
		DiscountedPrice: moneyPtr(b.DiscountedPrice),
		EbookPrice:      moneyPtr(b.EbookPrice),
		EbookDiscounted: moneyPtr(b.EbookDiscounted),
		Stock:           b.Stock,
	}
}

func toBookResponses(books []catalog.Book) []bookResponse {
	out := make([]bookResponse, len(books))
	for i, b := range books {
		out[i] = toBookResponse(b)
	}
	return out
}

// ListBooks returns the catalog, optionally filtered by ?category=.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponses(books))
}

// GetBook returns a single catalog entry.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.books.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(*b))
}

// ListCategories returns the distinct catalog categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.books.Categories(r.Context())
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// ListWishlist returns the user's wishlisted books.
func (h *Handler) ListWishlist(w http.ResponseWriter, r *http.Request) {
	books, err := h.wishlist.List(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponses(books))
}

// AddWishlist puts a book on the wishlist. Adding twice is a no-op.
func (h *Handler) AddWishlist(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("bookID")
	if _, err := h.books.GetByID(r.Context(), bookID); err != nil {
		mapDomainError(w, r, err)
		return
	}
	if err := h.wishlist.Add(r.Context(), userFrom(r.Context()).ID, bookID); err != nil {
		mapDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveWishlist takes a book off the wishlist.
func (h *Handler) RemoveWishlist(w http.ResponseWriter, r *http.Request) {
	err := h.wishlist.Remove(r.Context(), userFrom(r.Context()).ID, r.PathValue("bookID"))
	if err != nil {
		mapDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
