// Command catalog-ingest loads supplier catalog feeds into the products
// table. Feeds are gzip-compressed CSV files with one product per line:
//
//	id,name,price,tax_pct,stock
//
// Feeds routinely repeat products (full exports from several suppliers), so
// a bloom filter tracks already-accepted IDs and duplicates are skipped
// without holding every ID in memory. The database upsert uses ON CONFLICT
// DO NOTHING as the exact backstop for bloom false positives and
// already-loaded products.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/posline/billing-engine/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 1000
	progressEvery = 100_000
)

const insertProductSQL = `
	INSERT INTO products (id, name, price, tax_pct, stock)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO NOTHING`

type feedRow struct {
	id     string
	name   string
	price  decimal.Decimal
	taxPct decimal.Decimal
	stock  int
}

// seenFilter is a bloom filter shared across feed goroutines. First feed to
// claim an ID wins.
type seenFilter struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func (s *seenFilter) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter.TestString(id) {
		return false
	}
	s.filter.AddString(id)
	return true
}

func main() {
	var (
		feedDir     string
		databaseURL string
	)

	flag.StringVar(&feedDir, "feed-dir", "feeds", "directory containing *.csv.gz catalog feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, feedDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, feedDir, databaseURL string) error {
	feeds, err := filepath.Glob(filepath.Join(feedDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list feeds")
	}
	if len(feeds) == 0 {
		return errors.Errorf("no *.csv.gz feeds found in %s", feedDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("ingesting feeds", slog.Int("count", len(feeds)))

	seen := &seenFilter{filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR)}

	g, ctx := errgroup.WithContext(ctx)
	for _, feed := range feeds {
		g.Go(ingestFeed(ctx, pool, seen, feed))
	}
	return g.Wait()
}

func ingestFeed(ctx context.Context, pool *pgxpool.Pool, seen *seenFilter, path string) func() error {
	return func() error {
		name := filepath.Base(path)

		var (
			pending  []feedRow
			total    uint64
			accepted uint64
			rejected uint64
		)
		flush := func() error {
			if len(pending) == 0 {
				return nil
			}
			if err := writeBatch(ctx, pool, pending); err != nil {
				return err
			}
			pending = pending[:0]
			return nil
		}

		err := streamGzFile(ctx, path, func(line string) error {
			total++
			if total%progressEvery == 0 {
				slog.Info("ingest progress",
					slog.String("feed", name),
					slog.Uint64("lines", total),
				)
			}

			row, err := parseFeedLine(line)
			if err != nil {
				rejected++
				slog.Warn("skipping malformed feed line",
					slog.String("feed", name),
					slog.Uint64("line", total),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if !seen.claim(row.id) {
				return nil
			}

			accepted++
			pending = append(pending, row)
			if len(pending) >= batchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "ingest %s", name)
		}
		if err := flush(); err != nil {
			return errors.Wrapf(err, "ingest %s", name)
		}

		slog.Info("feed complete",
			slog.String("feed", name),
			slog.Uint64("lines", total),
			slog.Uint64("accepted", accepted),
			slog.Uint64("rejected", rejected),
		)
		return nil
	}
}

// parseFeedLine parses "id,name,price,tax_pct,stock". The name field must
// not contain commas; feeds are exported that way.
func parseFeedLine(line string) (feedRow, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return feedRow{}, errors.Errorf("expected 5 fields, got %d", len(fields))
	}

	id := strings.TrimSpace(fields[0])
	if id == "" {
		return feedRow{}, errors.New("empty product id")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(fields[2]))
	if err != nil {
		return feedRow{}, errors.Wrap(err, "parse price")
	}
	taxPct, err := decimal.NewFromString(strings.TrimSpace(fields[3]))
	if err != nil {
		return feedRow{}, errors.Wrap(err, "parse tax_pct")
	}
	stock, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil {
		return feedRow{}, errors.Wrap(err, "parse stock")
	}
	if price.IsNegative() || taxPct.IsNegative() || stock < 0 {
		return feedRow{}, errors.New("negative price, tax_pct or stock")
	}

	return feedRow{
		id:     id,
		name:   strings.TrimSpace(fields[1]),
		price:  price,
		taxPct: taxPct,
		stock:  stock,
	}, nil
}

func writeBatch(ctx context.Context, pool *pgxpool.Pool, rows []feedRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertProductSQL, r.id, r.name, r.price, r.taxPct, r.stock)
	}

	res := pool.SendBatch(ctx, batch)
	defer func() { _ = res.Close() }()

	for range rows {
		if _, err := res.Exec(); err != nil {
			return errors.Wrap(err, "insert batch")
		}
	}
	return nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
