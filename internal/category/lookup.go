// Package category resolves error category names to ids and seeds extra
// categories from a YAML file.
package category

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kiranshivaraju/errdesk/internal/cache"
	"github.com/kiranshivaraju/errdesk/internal/store"
	"github.com/kiranshivaraju/errdesk/pkg/models"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTTL     = 10 * time.Minute
	refreshTimeout = 5 * time.Second
)

// Lister is the store dependency of Lookup.
type Lister interface {
	ListCategories(ctx context.Context) ([]*models.ErrorCategory, error)
}

// Lookup resolves category names through Redis, falling back to the store.
// Concurrent misses share a single ListCategories call.
type Lookup struct {
	store Lister
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewLookup creates a Lookup. A nil cache disables caching.
func NewLookup(s Lister, c cache.Cache) *Lookup {
	return &Lookup{store: s, cache: c, ttl: defaultTTL}
}

// IDByName returns the id of the category with the given name, matched
// case-insensitively. Returns store.ErrNotFound for unknown names.
func (l *Lookup) IDByName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", store.ErrNotFound
	}

	if l.cache != nil {
		val, found, err := l.cache.Get(ctx, cache.CategoryNameKey(name))
		if err != nil {
			slog.Debug("category cache read failed", "error", err)
		} else if found {
			return string(val), nil
		}
	}

	// The shared refresh outlives any single caller's cancellation.
	v, err, _ := l.group.Do("categories", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return l.refresh(rctx)
	})
	if err != nil {
		return "", err
	}

	id, ok := v.(map[string]string)[cache.CategoryNameKey(name)]
	if !ok {
		return "", store.ErrNotFound
	}
	return id, nil
}

// refresh loads all categories and writes them back to the cache.
func (l *Lookup) refresh(ctx context.Context) (map[string]string, error) {
	cats, err := l.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	ids := make(map[string]string, len(cats))
	values := make(map[string][]byte, len(cats))
	for _, c := range cats {
		key := cache.CategoryNameKey(c.Name)
		ids[key] = c.ID
		values[key] = []byte(c.ID)
	}

	if l.cache != nil {
		if err := l.cache.SetMany(ctx, values, l.ttl); err != nil {
			slog.Debug("category cache write failed", "error", err)
		}
	}
	return ids, nil
}
