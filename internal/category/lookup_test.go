package category_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/errdesk/internal/category"
	"github.com/kiranshivaraju/errdesk/internal/store"
	"github.com/kiranshivaraju/errdesk/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockLister struct {
	cats  []*models.ErrorCategory
	err   error
	calls atomic.Int32
}

func (m *mockLister) ListCategories(_ context.Context) ([]*models.ErrorCategory, error) {
	m.calls.Add(1)
	return m.cats, m.err
}

type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	lastTTL time.Duration
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Set(_ context.Context, k string, v []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[k] = v
	c.lastTTL = ttl
	return nil
}
func (c *mapCache) SetMany(_ context.Context, values map[string][]byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range values {
		c.data[k] = v
	}
	c.lastTTL = ttl
	return nil
}
func (c *mapCache) Get(_ context.Context, k string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[k]
	return v, ok, nil
}
func (c *mapCache) Delete(_ context.Context, k string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, k)
	return nil
}
func (c *mapCache) Ping(_ context.Context) error { return nil }
func (c *mapCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func seededLister() *mockLister {
	return &mockLister{cats: []*models.ErrorCategory{
		{ID: "cat-ui", Name: "UI/UX"},
		{ID: "cat-db", Name: "Database"},
	}}
}

// --- tests ---

func TestIDByName_MissLoadsFromStore(t *testing.T) {
	l := seededLister()
	c := newMapCache()
	lookup := category.NewLookup(l, c)

	id, err := lookup.IDByName(context.Background(), "Database")
	require.NoError(t, err)
	assert.Equal(t, "cat-db", id)
	assert.Equal(t, int32(1), l.calls.Load())

	// Every category was written back, not just the requested one.
	assert.Equal(t, []byte("cat-ui"), c.data["category:name:ui/ux"])
	assert.Equal(t, 10*time.Minute, c.lastTTL)
}

func TestIDByName_HitSkipsStore(t *testing.T) {
	l := seededLister()
	c := newMapCache()
	lookup := category.NewLookup(l, c)
	ctx := context.Background()

	_, err := lookup.IDByName(ctx, "UI/UX")
	require.NoError(t, err)

	id, err := lookup.IDByName(ctx, "ui/ux")
	require.NoError(t, err)
	assert.Equal(t, "cat-ui", id)
	assert.Equal(t, int32(1), l.calls.Load())
}

func TestIDByName_Unknown(t *testing.T) {
	lookup := category.NewLookup(seededLister(), newMapCache())

	_, err := lookup.IDByName(context.Background(), "Billing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIDByName_EmptyName(t *testing.T) {
	l := seededLister()
	lookup := category.NewLookup(l, nil)

	_, err := lookup.IDByName(context.Background(), "   ")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, int32(0), l.calls.Load())
}

func TestIDByName_StoreError(t *testing.T) {
	lookup := category.NewLookup(&mockLister{err: errors.New("connection refused")}, nil)

	_, err := lookup.IDByName(context.Background(), "Database")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIDByName_CacheErrorFallsThrough(t *testing.T) {
	c := newMapCache()
	c.getErr = errors.New("redis down")
	lookup := category.NewLookup(seededLister(), c)

	id, err := lookup.IDByName(context.Background(), "Database")
	require.NoError(t, err)
	assert.Equal(t, "cat-db", id)
}

func TestIDByName_NilCache(t *testing.T) {
	l := seededLister()
	lookup := category.NewLookup(l, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := lookup.IDByName(ctx, "UI/UX")
		require.NoError(t, err)
		assert.Equal(t, "cat-ui", id)
	}
	assert.Equal(t, int32(3), l.calls.Load())
}

// ctxLister fails like a real store once its context is done.
type ctxLister struct {
	*mockLister
	hadDeadline atomic.Bool
}

func (l *ctxLister) ListCategories(ctx context.Context) ([]*models.ErrorCategory, error) {
	if _, ok := ctx.Deadline(); ok {
		l.hadDeadline.Store(true)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.mockLister.ListCategories(ctx)
}

func TestIDByName_RefreshIgnoresCallerCancellation(t *testing.T) {
	lister := &ctxLister{mockLister: seededLister()}
	l := category.NewLookup(lister, newMapCache())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id, err := l.IDByName(ctx, "Database")
	require.NoError(t, err)
	assert.Equal(t, "cat-db", id)
	assert.True(t, lister.hadDeadline.Load(), "refresh should run under its own timeout")
}
