package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardback/bookstore/internal/domain/catalog"
	"github.com/hardback/bookstore/internal/domain/pricing"
)

type mockCartRepo struct {
	carts       map[string]*Cart
	lastSet     *Item
	lastSetUser string
	removed     []string
	cleared     []string
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*Cart)}
}

func (m *mockCartRepo) Get(_ context.Context, userID string) (*Cart, error) {
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	return &Cart{UserID: userID}, nil
}

func (m *mockCartRepo) SetItem(_ context.Context, userID string, item Item) error {
	m.lastSet = &item
	m.lastSetUser = userID
	return nil
}

func (m *mockCartRepo) RemoveItem(_ context.Context, _, bookID string, _ pricing.ItemKind) error {
	m.removed = append(m.removed, bookID)
	return nil
}

func (m *mockCartRepo) Clear(_ context.Context, userID string) error {
	m.cleared = append(m.cleared, userID)
	return nil
}

type mockBookRepo struct {
	byID map[string]catalog.Book
}

func (m *mockBookRepo) List(_ context.Context, _ string) ([]catalog.Book, error) { return nil, nil }
func (m *mockBookRepo) Categories(_ context.Context) ([]string, error)           { return nil, nil }

func (m *mockBookRepo) GetByID(_ context.Context, id string) (*catalog.Book, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &b, nil
}

func (m *mockBookRepo) GetByIDs(_ context.Context, _ []string) ([]catalog.Book, error) {
	return nil, nil
}
func (m *mockBookRepo) Upsert(_ context.Context, _ *catalog.Book) error { return nil }
func (m *mockBookRepo) Delete(_ context.Context, _ string) error        { return nil }

func newBooks() *mockBookRepo {
	ebookPrice := decimal.NewFromInt(10)
	return &mockBookRepo{byID: map[string]catalog.Book{
		"print-only": {ID: "print-only", Price: decimal.NewFromInt(20), Stock: 5},
		"both": {
			ID:         "both",
			Price:      decimal.NewFromInt(25),
			EbookPrice: &ebookPrice,
			Stock:      3,
		},
	}}
}

func TestService_SetItem(t *testing.T) {
	fixedNow := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	newService := func(carts *mockCartRepo) *Service {
		svc := NewService(carts, newBooks())
		svc.now = func() time.Time { return fixedNow }
		return svc
	}

	t.Run("adds physical line", func(t *testing.T) {
		carts := newMockCartRepo()
		svc := newService(carts)

		err := svc.SetItem(context.Background(), "u1", pricing.Line{
			BookID:   "print-only",
			Quantity: 2,
			Kind:     pricing.ItemPhysical,
		})
		require.NoError(t, err)
		require.NotNil(t, carts.lastSet)
		assert.Equal(t, "u1", carts.lastSetUser)
		assert.Equal(t, 2, carts.lastSet.Quantity)
		assert.Equal(t, pricing.ItemPhysical, carts.lastSet.Kind)
		assert.Equal(t, fixedNow, carts.lastSet.AddedAt)
	})

	t.Run("invalid kind defaults to physical", func(t *testing.T) {
		carts := newMockCartRepo()
		svc := newService(carts)

		err := svc.SetItem(context.Background(), "u1", pricing.Line{
			BookID:   "print-only",
			Quantity: 1,
			Kind:     "hologram",
		})
		require.NoError(t, err)
		assert.Equal(t, pricing.ItemPhysical, carts.lastSet.Kind)
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		svc := newService(newMockCartRepo())

		err := svc.SetItem(context.Background(), "u1", pricing.Line{BookID: "print-only", Quantity: 0})
		var iqErr *pricing.InvalidQuantityError
		assert.ErrorAs(t, err, &iqErr)
	})

	t.Run("unknown book rejected", func(t *testing.T) {
		svc := newService(newMockCartRepo())

		err := svc.SetItem(context.Background(), "u1", pricing.Line{BookID: "ghost", Quantity: 1})
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("ebook line requires digital edition", func(t *testing.T) {
		svc := newService(newMockCartRepo())

		err := svc.SetItem(context.Background(), "u1", pricing.Line{
			BookID:   "print-only",
			Quantity: 1,
			Kind:     pricing.ItemEbook,
		})
		assert.ErrorIs(t, err, ErrNoEbookEdition)
	})

	t.Run("ebook line accepted when edition exists", func(t *testing.T) {
		carts := newMockCartRepo()
		svc := newService(carts)

		err := svc.SetItem(context.Background(), "u1", pricing.Line{
			BookID:   "both",
			Quantity: 1,
			Kind:     pricing.ItemEbook,
		})
		require.NoError(t, err)
		assert.Equal(t, pricing.ItemEbook, carts.lastSet.Kind)
	})

	t.Run("quantity above stock accepted in cart", func(t *testing.T) {
		carts := newMockCartRepo()
		svc := newService(carts)

		err := svc.SetItem(context.Background(), "u1", pricing.Line{
			BookID:   "both",
			Quantity: 50,
			Kind:     pricing.ItemPhysical,
		})
		require.NoError(t, err)
		assert.Equal(t, 50, carts.lastSet.Quantity)
	})
}

func TestService_RemoveItem(t *testing.T) {
	carts := newMockCartRepo()
	svc := NewService(carts, newBooks())

	require.NoError(t, svc.RemoveItem(context.Background(), "u1", "print-only", pricing.ItemPhysical))
	assert.Equal(t, []string{"print-only"}, carts.removed)
}

func TestService_Clear(t *testing.T) {
	carts := newMockCartRepo()
	svc := NewService(carts, newBooks())

	require.NoError(t, svc.Clear(context.Background(), "u1"))
	assert.Equal(t, []string{"u1"}, carts.cleared)
}

func TestCartLines(t *testing.T) {
	c := &Cart{UserID: "u1", Items: []Item{
		{BookID: "a", Quantity: 2, Kind: pricing.ItemPhysical},
		{BookID: "b", Quantity: 1, Kind: pricing.ItemEbook},
	}}

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, pricing.Line{BookID: "a", Quantity: 2, Kind: pricing.ItemPhysical}, lines[0])
	assert.Equal(t, pricing.Line{BookID: "b", Quantity: 1, Kind: pricing.ItemEbook}, lines[1])
}
