package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardback/bookstore/internal/domain/catalog"
	"github.com/hardback/bookstore/internal/domain/coupon"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func newBook(id string, price string, stock int) catalog.Book {
	return catalog.Book{ID: id, Title: id, Price: d(price), Stock: stock}
}

func TestUnitPrice(t *testing.T) {
	tests := []struct {
		name string
		book catalog.Book
		kind ItemKind
		want string
	}{
		{
			name: "physical uses base price",
			book: newBook("b1", "20.00", 10),
			kind: ItemPhysical,
			want: "20",
		},
		{
			name: "physical prefers discounted price",
			book: catalog.Book{Price: d("20.00"), DiscountedPrice: dp("15.00")},
			kind: ItemPhysical,
			want: "15",
		},
		{
			name: "ebook prefers ebook discounted",
			book: catalog.Book{Price: d("20.00"), EbookPrice: dp("12.00"), EbookDiscounted: dp("9.99")},
			kind: ItemEbook,
			want: "9.99",
		},
		{
			name: "ebook falls back to ebook price",
			book: catalog.Book{Price: d("20.00"), EbookPrice: dp("12.00")},
			kind: ItemEbook,
			want: "12",
		},
		{
			name: "ebook without digital prices falls back to physical",
			book: catalog.Book{Price: d("20.00")},
			kind: ItemEbook,
			want: "20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnitPrice(tt.book, tt.kind)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestLineTotal(t *testing.T) {
	book := newBook("b1", "199.00", 5)

	t.Run("multiplies unit price by quantity", func(t *testing.T) {
		total, err := LineTotal(Line{BookID: "b1", Quantity: 2, Kind: ItemPhysical}, book)
		require.NoError(t, err)
		assert.True(t, total.Equal(d("398")), "got %s", total)
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		_, err := LineTotal(Line{BookID: "b1", Quantity: 0}, book)
		var iqErr *InvalidQuantityError
		require.ErrorAs(t, err, &iqErr)
		assert.Equal(t, "b1", iqErr.BookID)
		assert.Equal(t, 0, iqErr.Quantity)
	})

	t.Run("negative quantity rejected", func(t *testing.T) {
		_, err := LineTotal(Line{BookID: "b1", Quantity: -3}, book)
		var iqErr *InvalidQuantityError
		require.ErrorAs(t, err, &iqErr)
	})

	t.Run("quantity above stock still priced", func(t *testing.T) {
		total, err := LineTotal(Line{BookID: "b1", Quantity: 9, Kind: ItemPhysical}, book)
		require.NoError(t, err)
		assert.True(t, total.Equal(d("1791")))
	})
}

func TestCheckStock(t *testing.T) {
	book := newBook("b1", "10.00", 2)

	t.Run("within stock", func(t *testing.T) {
		assert.NoError(t, CheckStock(Line{BookID: "b1", Quantity: 2, Kind: ItemPhysical}, book))
	})

	t.Run("exceeds stock", func(t *testing.T) {
		err := CheckStock(Line{BookID: "b1", Quantity: 3, Kind: ItemPhysical}, book)
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 3, stockErr.Requested)
		assert.Equal(t, 2, stockErr.Stock)
	})

	t.Run("ebooks never stock limited", func(t *testing.T) {
		assert.NoError(t, CheckStock(Line{BookID: "b1", Quantity: 100, Kind: ItemEbook}, book))
	})
}

func TestSubtotal(t *testing.T) {
	books := map[string]catalog.Book{
		"b1": newBook("b1", "10.50", 10),
		"b2": newBook("b2", "5.25", 10),
	}

	t.Run("sums lines", func(t *testing.T) {
		sub, err := Subtotal([]Line{
			{BookID: "b1", Quantity: 2, Kind: ItemPhysical},
			{BookID: "b2", Quantity: 1, Kind: ItemPhysical},
		}, books)
		require.NoError(t, err)
		assert.True(t, sub.Equal(d("26.25")), "got %s", sub)
	})

	t.Run("empty cart is exactly zero", func(t *testing.T) {
		sub, err := Subtotal(nil, books)
		require.NoError(t, err)
		assert.True(t, sub.Equal(decimal.Zero))
	})

	t.Run("missing book", func(t *testing.T) {
		_, err := Subtotal([]Line{{BookID: "nope", Quantity: 1}}, books)
		var bnpErr *BookNotPricedError
		require.ErrorAs(t, err, &bnpErr)
		assert.Equal(t, "nope", bnpErr.BookID)
	})
}

func TestDiscount(t *testing.T) {
	tests := []struct {
		name     string
		rule     *coupon.Rule
		subtotal string
		want     string
	}{
		{
			name:     "nil rule yields zero",
			rule:     nil,
			subtotal: "100.00",
			want:     "0",
		},
		{
			name:     "percentage applied",
			rule:     &coupon.Rule{DiscountPercent: d("10")},
			subtotal: "1000.00",
			want:     "100",
		},
		{
			name:     "capped at max discount",
			rule:     &coupon.Rule{DiscountPercent: d("10"), MaxDiscount: d("50")},
			subtotal: "1000.00",
			want:     "50",
		},
		{
			name:     "large cap leaves percentage intact",
			rule:     &coupon.Rule{DiscountPercent: d("80"), MaxDiscount: d("1000")},
			subtotal: "1000.00",
			want:     "800",
		},
		{
			name:     "never exceeds subtotal",
			rule:     &coupon.Rule{DiscountPercent: d("100"), MaxDiscount: d("500")},
			subtotal: "300.00",
			want:     "300",
		},
		{
			name:     "rounds to cents",
			rule:     &coupon.Rule{DiscountPercent: d("15")},
			subtotal: "19.99",
			want:     "3.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Discount(tt.rule, d(tt.subtotal))
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
			assert.False(t, got.IsNegative())
		})
	}
}

func TestGrandTotal(t *testing.T) {
	t.Run("subtotal minus discount", func(t *testing.T) {
		total := GrandTotal(d("1000"), d("50"))
		assert.True(t, total.Equal(d("950")))
	})

	t.Run("floors at zero", func(t *testing.T) {
		total := GrandTotal(d("10"), d("25"))
		assert.True(t, total.Equal(decimal.Zero))
	})
}

func TestBuildQuote(t *testing.T) {
	books := map[string]catalog.Book{
		"hardcover": newBook("hardcover", "500.00", 10),
		"novel":     newBook("novel", "250.00", 10),
		"ebook": {
			ID:         "ebook",
			Price:      d("250.00"),
			EbookPrice: dp("199.00"),
		},
	}

	t.Run("ten percent capped at fifty", func(t *testing.T) {
		q, err := BuildQuote(
			[]Line{{BookID: "hardcover", Quantity: 2, Kind: ItemPhysical}},
			books,
			&coupon.Rule{Code: "SAVE10", DiscountPercent: d("10"), MaxDiscount: d("50")},
		)
		require.NoError(t, err)
		assert.True(t, q.Subtotal.Equal(d("1000")), "subtotal %s", q.Subtotal)
		assert.True(t, q.Discount.Equal(d("50")), "discount %s", q.Discount)
		assert.True(t, q.Total.Equal(d("950")), "total %s", q.Total)
		assert.Equal(t, "SAVE10", q.CouponCode)
	})

	t.Run("eighty percent under large cap", func(t *testing.T) {
		q, err := BuildQuote(
			[]Line{{BookID: "hardcover", Quantity: 2, Kind: ItemPhysical}},
			books,
			&coupon.Rule{Code: "MEGA", DiscountPercent: d("80"), MaxDiscount: d("1000")},
		)
		require.NoError(t, err)
		assert.True(t, q.Discount.Equal(d("800")))
		assert.True(t, q.Total.Equal(d("200")))
	})

	t.Run("ebook line priced from digital edition", func(t *testing.T) {
		q, err := BuildQuote(
			[]Line{{BookID: "ebook", Quantity: 2, Kind: ItemEbook}},
			books,
			nil,
		)
		require.NoError(t, err)
		assert.True(t, q.Subtotal.Equal(d("398")), "subtotal %s", q.Subtotal)
		assert.True(t, q.Discount.Equal(decimal.Zero))
		assert.True(t, q.Total.Equal(d("398")))
		assert.Empty(t, q.CouponCode)
	})

	t.Run("no coupon", func(t *testing.T) {
		q, err := BuildQuote(
			[]Line{{BookID: "novel", Quantity: 1, Kind: ItemPhysical}},
			books,
			nil,
		)
		require.NoError(t, err)
		assert.True(t, q.Total.Equal(d("250")))
	})
}

func TestItemKindValid(t *testing.T) {
	assert.True(t, ItemPhysical.Valid())
	assert.True(t, ItemEbook.Valid())
	assert.False(t, ItemKind("").Valid())
	assert.False(t, ItemKind("audio").Valid())
}
