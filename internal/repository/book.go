package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hardback/bookstore/internal/domain/catalog"
)

const (
	bookColumns = `id, title, author, description, category, cover_url,
		price, discounted_price, ebook_price, ebook_discounted, stock, created_at`

	listBooksSQL = `SELECT ` + bookColumns + ` FROM books ORDER BY title, id`

	listBooksByCategorySQL = `SELECT ` + bookColumns + ` FROM books WHERE category = $1 ORDER BY title, id`

	listCategoriesSQL = `SELECT DISTINCT category FROM books WHERE category <> '' ORDER BY category`

	getBookByIDSQL = `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	getBooksByIDsSQL = `SELECT ` + bookColumns + ` FROM books WHERE id = ANY($1)`

	upsertBookSQL = `INSERT INTO books (id, title, author, description, category, cover_url,
			price, discounted_price, ebook_price, ebook_discounted, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			cover_url = EXCLUDED.cover_url,
			price = EXCLUDED.price,
			discounted_price = EXCLUDED.discounted_price,
			ebook_price = EXCLUDED.ebook_price,
			ebook_discounted = EXCLUDED.ebook_discounted,
			stock = EXCLUDED.stock`

	deleteBookSQL = `DELETE FROM books WHERE id = $1`
)

var _ catalog.Repository = (*BookRepository)(nil)

// BookRepository implements catalog.Repository backed by PostgreSQL.
type BookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository returns a BookRepository that uses the given pool.
func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

// List returns the catalog, optionally narrowed to one category.
func (r *BookRepository) List(ctx context.Context, category string) ([]catalog.Book, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if category == "" {
		rows, err = r.pool.Query(ctx, listBooksSQL)
	} else {
		rows, err = r.pool.Query(ctx, listBooksByCategorySQL, category)
	}
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return pgx.CollectRows(rows, scanBook)
}

// Categories returns the distinct non-empty categories in the catalog.
func (r *BookRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var c string
		err := row.Scan(&c)
		return c, err
	})
}

// GetByID returns a single book by its identifier.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*catalog.Book, error) {
	rows, err := r.pool.Query(ctx, getBookByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting book %q: %w", id, err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBook)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting book %q: %w", id, err)
	}
	return &b, nil
}

// GetByIDs returns books matching any of the given IDs.
func (r *BookRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Book, error) {
	rows, err := r.pool.Query(ctx, getBooksByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting books by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanBook)
}

// Upsert inserts or updates a catalog entry.
func (r *BookRepository) Upsert(ctx context.Context, b *catalog.Book) error {
	_, err := r.pool.Exec(ctx, upsertBookSQL,
		b.ID, b.Title, b.Author, b.Description, b.Category, b.CoverURL,
		b.Price, b.DiscountedPrice, b.EbookPrice, b.EbookDiscounted, b.Stock,
	)
	if err != nil {
		return fmt.Errorf("upserting book %q: %w", b.ID, err)
	}
	return nil
}

// Delete removes a catalog entry.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteBookSQL, id)
	if err != nil {
		return fmt.Errorf("deleting book %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanBook(row pgx.CollectableRow) (catalog.Book, error) {
	var b catalog.Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.Description, &b.Category, &b.CoverURL,
		&b.Price, &b.DiscountedPrice, &b.EbookPrice, &b.EbookDiscounted, &b.Stock, &b.CreatedAt,
	)
	return b, err
}
