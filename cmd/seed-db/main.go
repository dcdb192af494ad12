package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/posline/billing-engine/internal/storage/postgres"
)

type productJSON struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	TaxPct decimal.Decimal `json:"taxPct"`
	Stock  int             `json:"stock"`
}

type denominationJSON struct {
	Value decimal.Decimal `json:"value"`
	Count int             `json:"count"`
}

const (
	upsertProductSQL = `
		INSERT INTO products (id, name, price, tax_pct, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			tax_pct = EXCLUDED.tax_pct,
			stock = EXCLUDED.stock`

	upsertDenominationSQL = `
		INSERT INTO denominations (value, count_available)
		VALUES ($1, $2)
		ON CONFLICT (value) DO UPDATE SET
			count_available = EXCLUDED.count_available`
)

func main() {
	var (
		databaseURL       string
		productsFile      string
		denominationsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&denominationsFile, "denominations-file", "db/seed/denominations.json", "path to denominations JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, denominationsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, denominationsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedDenominations(ctx, pool, denominationsFile); err != nil {
		return errors.Wrap(err, "seed denominations")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Price, p.TaxPct, p.Stock); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product",
			slog.String("id", p.ID),
			slog.String("name", p.Name),
			slog.Int("stock", p.Stock),
		)
	}

	return nil
}

func seedDenominations(ctx context.Context, pool *pgxpool.Pool, denominationsFile string) error {
	slog.Info("reading denominations file", slog.String("path", denominationsFile))

	data, err := os.ReadFile(denominationsFile)
	if err != nil {
		return errors.Wrap(err, "read denominations file")
	}

	var denominations []denominationJSON
	if err := json.Unmarshal(data, &denominations); err != nil {
		return errors.Wrap(err, "parse denominations JSON")
	}

	slog.Info("upserting denominations", slog.Int("count", len(denominations)))

	for _, d := range denominations {
		if _, err := pool.Exec(ctx, upsertDenominationSQL, d.Value, d.Count); err != nil {
			return errors.Wrapf(err, "upsert denomination %s", d.Value.StringFixed(2))
		}

		slog.Info("upserted denomination",
			slog.String("value", d.Value.StringFixed(2)),
			slog.Int("count", d.Count),
		)
	}

	return nil
}
