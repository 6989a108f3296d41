//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"testing"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var userSeq atomic.Int64

func freshEmail() string {
	return fmt.Sprintf("reader%d@example.com", userSeq.Add(1))
}

func addToCart(t *testing.T, token string, item cartItemRequest) {
	t.Helper()

	resp := doJSON(t, http.MethodPut, "/api/cart/items", item, bearer(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add to cart: expected 200, got %d", resp.StatusCode)
	}
}

func TestCheckout_RequiresSession(t *testing.T) {
	resp := doJSON(t, http.MethodPost, "/api/checkout", checkoutRequest{PaymentMethod: "cod"}, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	token := registerAndLogin(t, freshEmail())

	resp := doJSON(t, http.MethodPost, "/api/checkout", checkoutRequest{PaymentMethod: "cod"}, bearer(token))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCheckout_SingleBook(t *testing.T) {
	token := registerAndLogin(t, freshEmail())
	// Sale price 34.99 applies, not the 39.99 base price.
	addToCart(t, token, cartItemRequest{BookID: "the-go-programming-language", Quantity: 1})

	resp := doJSON(t, http.MethodPost, "/api/checkout", checkoutRequest{PaymentMethod: "cod"}, bearer(token))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	res := decodeJSON[checkoutResponse](t, resp)
	if !uuidPattern.MatchString(res.Order.ID) {
		t.Errorf("order ID %q is not a UUID", res.Order.ID)
	}
	if res.Order.Total != "34.99" {
		t.Errorf("total: got %s, want 34.99", res.Order.Total)
	}
	if res.Order.Status != "PROCESSING" {
		t.Errorf("status: got %s, want PROCESSING", res.Order.Status)
	}
}

func TestCheckout_WithCoupon(t *testing.T) {
	token := registerAndLogin(t, freshEmail())
	addToCart(t, token, cartItemRequest{BookID: "the-go-programming-language", Quantity: 1})

	// Quote first: 34.99 minus 10% = 31.49.
	resp := doGetAuth(t, "/api/cart/quote?coupon=WELCOME10", bearer(token))
	quote := decodeJSON[quoteResponse](t, resp)
	resp.Body.Close()
	if quote.Discount != "3.50" {
		t.Errorf("quote discount: got %s, want 3.50", quote.Discount)
	}
	if quote.Total != "31.49" {
		t.Errorf("quote total: got %s, want 31.49", quote.Total)
	}

	resp = doJSON(t, http.MethodPost, "/api/checkout",
		checkoutRequest{PaymentMethod: "cod", CouponCode: "WELCOME10"}, bearer(token))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	res := decodeJSON[checkoutResponse](t, resp)
	if res.Order.Total != "31.49" {
		t.Errorf("total: got %s, want 31.49", res.Order.Total)
	}
	if res.Order.CouponCode != "WELCOME10" {
		t.Errorf("couponCode: got %s", res.Order.CouponCode)
	}
}

func TestCheckout_UnknownCoupon(t *testing.T) {
	token := registerAndLogin(t, freshEmail())
	addToCart(t, token, cartItemRequest{BookID: "the-go-programming-language", Quantity: 1})

	resp := doJSON(t, http.MethodPost, "/api/checkout",
		checkoutRequest{PaymentMethod: "cod", CouponCode: "NOSUCHCODE"}, bearer(token))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCheckout_OutOfStock(t *testing.T) {
	token := registerAndLogin(t, freshEmail())
	addToCart(t, token, cartItemRequest{BookID: "a-brief-history-of-time", Quantity: 1})

	resp := doJSON(t, http.MethodPost, "/api/checkout", checkoutRequest{PaymentMethod: "cod"}, bearer(token))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCheckout_EbookGrantsLibrary(t *testing.T) {
	token := registerAndLogin(t, freshEmail())
	addToCart(t, token, cartItemRequest{BookID: "the-name-of-the-wind", Quantity: 1, Kind: "ebook"})

	resp := doJSON(t, http.MethodPost, "/api/checkout", checkoutRequest{PaymentMethod: "cod"}, bearer(token))
	res := decodeJSON[checkoutResponse](t, resp)
	resp.Body.Close()
	if res.Order.Total != "9.99" {
		t.Errorf("total: got %s, want 9.99", res.Order.Total)
	}

	resp = doGetAuth(t, "/api/library", bearer(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("library: expected 200, got %d", resp.StatusCode)
	}

	library := decodeJSON[[]bookResponse](t, resp)
	if len(library) != 1 || library[0].ID != "the-name-of-the-wind" {
		t.Errorf("library: got %+v", library)
	}
}

func TestCheckout_ClearsCart(t *testing.T) {
	token := registerAndLogin(t, freshEmail())
	addToCart(t, token, cartItemRequest{BookID: "project-hail-mary", Quantity: 1})

	resp := doJSON(t, http.MethodPost, "/api/checkout", checkoutRequest{PaymentMethod: "cod"}, bearer(token))
	resp.Body.Close()

	resp = doGetAuth(t, "/api/cart/quote", bearer(token))
	defer resp.Body.Close()
	quote := decodeJSON[quoteResponse](t, resp)
	if quote.Subtotal != "0.00" {
		t.Errorf("cart not cleared: subtotal %s", quote.Subtotal)
	}
}

func TestOrderHistory(t *testing.T) {
	token := registerAndLogin(t, freshEmail())
	addToCart(t, token, cartItemRequest{BookID: "thinking-fast-and-slow", Quantity: 2})

	resp := doJSON(t, http.MethodPost, "/api/checkout", checkoutRequest{PaymentMethod: "cod"}, bearer(token))
	placed := decodeJSON[checkoutResponse](t, resp)
	resp.Body.Close()

	resp = doGetAuth(t, "/api/orders", bearer(token))
	defer resp.Body.Close()
	orders := decodeJSON[[]orderResponse](t, resp)
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	if orders[0].ID != placed.Order.ID {
		t.Errorf("order ID mismatch: %s vs %s", orders[0].ID, placed.Order.ID)
	}
	if orders[0].Total != "34.00" {
		t.Errorf("total: got %s, want 34.00", orders[0].Total)
	}
}
