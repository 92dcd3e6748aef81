package catalog

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	products    []Product
	listCalls   atomic.Int64
	searchCalls atomic.Int64
	lastQuery   string
}

func (m *mockRepo) List(_ context.Context) ([]Product, error) {
	m.listCalls.Add(1)
	return m.products, nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Search(_ context.Context, query string) ([]Product, error) {
	m.searchCalls.Add(1)
	m.lastQuery = query
	var out []Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func newRepo() *mockRepo {
	price := decimal.RequireFromString("10.00")
	return &mockRepo{products: []Product{
		{ID: "p1", Name: "Aceite de masajes", Price: price},
		{ID: "p2", Name: "Vela aromática", Price: price},
		{ID: "p3", Name: "Gel íntimo", Price: price},
	}}
}

func TestSearch_LongQueryHitsRepository(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, time.Minute)

	res, err := svc.Search(context.Background(), "aceite")

	require.NoError(t, err)
	assert.Equal(t, int64(1), repo.searchCalls.Load())
	assert.Equal(t, int64(0), repo.listCalls.Load())
	assert.Equal(t, "aceite", res.Query)
}

func TestSearch_ShortQueryFiltersLocally(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, time.Minute)

	res, err := svc.Search(context.Background(), "ve")

	require.NoError(t, err)
	assert.Zero(t, repo.searchCalls.Load())
	require.Len(t, res.Products, 1)
	assert.Equal(t, "p2", res.Products[0].ID)
}

func TestSearch_EmptyQueryListsAll(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, time.Minute)

	res, err := svc.Search(context.Background(), "")

	require.NoError(t, err)
	assert.Len(t, res.Products, 3)
}

func TestSearch_LocalFilterIsCaseInsensitive(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, time.Minute)

	res, err := svc.Search(context.Background(), "VE")

	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Vela aromática", res.Products[0].Name)
}

func TestSearch_SnapshotIsCached(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, time.Minute)
	ctx := context.Background()

	_, err := svc.Search(ctx, "")
	require.NoError(t, err)
	_, err = svc.Search(ctx, "ve")
	require.NoError(t, err)

	assert.Equal(t, int64(1), repo.listCalls.Load())
}

func TestSearch_SeqIncreasesPerQuery(t *testing.T) {
	svc := NewService(newRepo(), time.Minute)
	ctx := context.Background()

	a, err := svc.Search(ctx, "")
	require.NoError(t, err)
	b, err := svc.Search(ctx, "aceite")
	require.NoError(t, err)

	assert.Greater(t, b.Seq, a.Seq)
}

func TestSearch_WhitespaceQueryTreatedAsEmpty(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, time.Minute)

	res, err := svc.Search(context.Background(), "   ")

	require.NoError(t, err)
	assert.Zero(t, repo.searchCalls.Load())
	assert.Len(t, res.Products, 3)
}
