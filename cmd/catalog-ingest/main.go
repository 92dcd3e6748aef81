package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/velaluna/storefront-api/internal/catalog"
	"github.com/velaluna/storefront-api/internal/storage/postgres"
)

const (
	bloomCapacity = 5_000_000
	bloomFPR      = 0.0001
	progressEvery = 100_000
)

// feedProduct is one line of a catalog feed export.
type feedProduct struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Image    string          `json:"image"`
	Stock    *int            `json:"stock"`
}

func main() {
	var (
		feedDir     string
		databaseURL string
		workers     int
	)

	flag.StringVar(&feedDir, "feed-dir", "data", "directory containing *.jsonl.gz catalog feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "concurrent feed file readers")
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

	if err := run(ctx, feedDir, databaseURL, workers); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, feedDir, databaseURL string, workers int) error {
	files, err := filepath.Glob(filepath.Join(feedDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", feedDir)
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

	return ingest(ctx, files, postgres.NewProductRepository(pool), workers)
}

// ingest streams every feed file concurrently and upserts each product once.
// Feed exports overlap between runs, so a bloom filter drops ids already seen
// in this pass; the first occurrence wins. The false positive rate is low
// enough that a skipped fresh product is corrected by the next feed run.
func ingest(ctx context.Context, files []string, repo *postgres.ProductRepository, workers int) error {
	var (
		mu   sync.Mutex
		seen = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	)

	products := make(chan catalog.Product, 1024)

	g, ctx := errgroup.WithContext(ctx)

	// Single writer keeps upsert ordering deterministic per product.
	g.Go(func() error {
		var written uint64
		for p := range products {
			if err := repo.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
			written++
			if written%progressEvery == 0 {
				slog.Info("write progress", slog.Uint64("written", written))
			}
		}
		slog.Info("write complete", slog.Uint64("written", written))
		return nil
	})

	readers, readCtx := errgroup.WithContext(ctx)
	readers.SetLimit(workers)
	for _, path := range files {
		readers.Go(func() error {
			return streamFeedFile(readCtx, path, func(fp feedProduct) bool {
				mu.Lock()
				dup := seen.TestAndAddString(fp.ID)
				mu.Unlock()
				if dup {
					return true
				}

				select {
				case products <- catalog.Product{
					ID:       fp.ID,
					Name:     fp.Name,
					Price:    fp.Price,
					Category: fp.Category,
					Image:    fp.Image,
					Stock:    fp.Stock,
				}:
					return true
				case <-readCtx.Done():
					return false
				}
			})
		})
	}

	readErr := readers.Wait()
	close(products)
	if err := g.Wait(); err != nil {
		return err
	}
	return readErr
}

// streamFeedFile reads a gzip-compressed JSONL file and calls fn for each
// product line. Malformed lines are logged and skipped. fn returns false to
// stop early.
func streamFeedFile(ctx context.Context, path string, fn func(feedProduct) bool) error {
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

	var line uint64
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++

		var fp feedProduct
		if err := json.Unmarshal(scanner.Bytes(), &fp); err != nil {
			slog.Warn("skipping malformed feed line",
				slog.String("file", path),
				slog.Uint64("line", line),
				slog.String("error", err.Error()),
			)
			continue
		}
		if fp.ID == "" {
			continue
		}
		if !fn(fp) {
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
