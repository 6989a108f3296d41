// Command seed-db loads the catalog from a JSON file and seeds a few
// starter coupons plus the default admin API key.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hardback/bookstore/internal/domain/catalog"
	"github.com/hardback/bookstore/internal/domain/coupon"
	"github.com/hardback/bookstore/internal/repository"
)

func main() {
	var (
		databaseURL  string
		booksFile    string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&booksFile, "books-file", "db/seed/books.json", "path to books JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or BOOKS_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or BOOKS_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("BOOKS_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or BOOKS_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("BOOKS_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, booksFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, booksFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedBooks(ctx, repository.NewBookRepository(pool), booksFile); err != nil {
		return errors.Wrap(err, "seed books")
	}

	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedBooks(ctx context.Context, books *repository.BookRepository, booksFile string) error {
	slog.Info("reading books file", slog.String("path", booksFile))

	data, err := os.ReadFile(booksFile)
	if err != nil {
		return errors.Wrap(err, "read books file")
	}

	parsed, err := parseBooks(data)
	if err != nil {
		return errors.Wrap(err, "parse books JSON")
	}

	slog.Info("upserting books", slog.Int("count", len(parsed)))

	for i := range parsed {
		b := &parsed[i]
		if err := books.Upsert(ctx, b); err != nil {
			return errors.Wrapf(err, "upsert book %s", b.ID)
		}

		slog.Info("upserted book", slog.String("id", b.ID), slog.String("title", b.Title))
	}

	return nil
}

// parseBooks decodes the seed file with jx. Prices are JSON numbers and
// are converted to decimals via their exact textual form.
func parseBooks(data []byte) ([]catalog.Book, error) {
	var books []catalog.Book

	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		var b catalog.Book
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				return decodeStr(d, &b.ID)
			case "title":
				return decodeStr(d, &b.Title)
			case "author":
				return decodeStr(d, &b.Author)
			case "description":
				return decodeStr(d, &b.Description)
			case "category":
				return decodeStr(d, &b.Category)
			case "coverUrl":
				return decodeStr(d, &b.CoverURL)
			case "price":
				return decodePrice(d, &b.Price)
			case "discountedPrice":
				return decodePricePtr(d, &b.DiscountedPrice)
			case "ebookPrice":
				return decodePricePtr(d, &b.EbookPrice)
			case "ebookDiscounted":
				return decodePricePtr(d, &b.EbookDiscounted)
			case "stock":
				v, err := d.Int()
				if err != nil {
					return err
				}
				b.Stock = v
				return nil
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		books = append(books, b)
		return nil
	}); err != nil {
		return nil, err
	}

	return books, nil
}

func decodeStr(d *jx.Decoder, dst *string) error {
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func decodePrice(d *jx.Decoder, dst *decimal.Decimal) error {
	num, err := d.Num()
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(num.String())
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func decodePricePtr(d *jx.Decoder, dst **decimal.Decimal) error {
	if d.Next() == jx.Null {
		*dst = nil
		return d.Null()
	}
	var v decimal.Decimal
	if err := decodePrice(d, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func seedCoupons(ctx context.Context, coupons *repository.CouponRepository) error {
	slog.Info("seeding starter coupons")

	until := time.Now().AddDate(1, 0, 0)
	rules := []coupon.Rule{
		{
			Code:            "WELCOME10",
			DiscountPercent: decimal.NewFromInt(10),
			MinOrderValue:   decimal.NewFromInt(20),
			Active:          true,
		},
		{
			Code:            "SUMMER25",
			DiscountPercent: decimal.NewFromInt(25),
			MaxDiscount:     decimal.NewFromInt(50),
			ValidUntil:      &until,
			Active:          true,
		},
		{
			Code:            "BOOKWORM",
			DiscountPercent: decimal.NewFromInt(15),
			MinOrderValue:   decimal.NewFromInt(50),
			UsageLimit:      1000,
			Active:          true,
		},
	}

	for i := range rules {
		if err := coupons.Upsert(ctx, &rules[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", rules[i].Code)
		}

		slog.Info("upserted coupon", slog.String("code", rules[i].Code))
	}

	return nil
}

const upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		key_hash = EXCLUDED.key_hash,
		name = EXCLUDED.name,
		scopes = EXCLUDED.scopes,
		active = EXCLUDED.active`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, upsertAPIKeySQL,
		"default", keyHash, "Default admin key", []string{"admin"}, true,
	)
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))

	return nil
}
