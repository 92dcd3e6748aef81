package catalog

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
)

// minServerQueryLen is the threshold below which a search stays local: short
// fragments would fan out to expensive unselective queries, so they filter
// the cached full list instead.
const minServerQueryLen = 3

// Result is a completed search. Seq increases with every search issued
// through one Service; a consumer holding results from overlapping requests
// keeps the highest Seq so the list shown always reflects the most recent
// completed query.
type Result struct {
	Seq      uint64    `json:"seq"`
	Query    string    `json:"query"`
	Products []Product `json:"products"`
}

// Service answers product list queries, combining repository-backed search
// for real queries with substring filtering over a cached snapshot for short
// or empty ones.
type Service struct {
	repo     Repository
	cacheTTL time.Duration
	seq      atomic.Uint64

	mu        sync.Mutex
	snapshot  []Product
	fetchedAt time.Time
}

// NewService creates a Service over repo. The full-list snapshot used for
// short queries is refreshed lazily after ttl.
func NewService(repo Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{repo: repo, cacheTTL: ttl}
}

// Search returns the products matching query. Queries of at least three
// characters hit the repository; shorter ones (including empty, which lists
// everything) substring-match the cached snapshot case-insensitively.
func (s *Service) Search(ctx context.Context, query string) (*Result, error) {
	seq := s.seq.Add(1)
	query = strings.TrimSpace(query)

	if len(query) >= minServerQueryLen {
		products, err := s.repo.Search(ctx, query)
		if err != nil {
			return nil, errors.Wrap(err, "search products")
		}
		return &Result{Seq: seq, Query: query, Products: products}, nil
	}

	all, err := s.list(ctx)
	if err != nil {
		return nil, err
	}

	if query == "" {
		return &Result{Seq: seq, Query: query, Products: all}, nil
	}

	needle := strings.ToLower(query)
	matched := make([]Product, 0, len(all))
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			matched = append(matched, p)
		}
	}
	return &Result{Seq: seq, Query: query, Products: matched}, nil
}

// GetByID returns a single product from the mirror.
func (s *Service) GetByID(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// list returns the cached full product list, refreshing it when stale.
func (s *Service) list(ctx context.Context) ([]Product, error) {
	s.mu.Lock()
	if s.snapshot != nil && time.Since(s.fetchedAt) < s.cacheTTL {
		cached := s.snapshot
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	s.mu.Lock()
	s.snapshot = products
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	return products, nil
}
