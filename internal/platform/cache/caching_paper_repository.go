// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"scholarly_library/internal/feature/papers/domain/entity"
	"scholarly_library/internal/feature/papers/usecase"
)

// CachingPaperRepository decorates a PaperRepository with Redis caching.
// Catalogue listings (per year filter) and single-paper lookups are cached;
// every write invalidates the affected keys.
type CachingPaperRepository struct {
	inner     usecase.PaperRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.PaperRepository = (*CachingPaperRepository)(nil)

// NewCachingPaperRepository decorates a PaperRepository with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "papers".
// A nil rdb disables caching entirely.
func NewCachingPaperRepository(rdb *redis.Client, ttl time.Duration, inner usecase.PaperRepository, namespace string) *CachingPaperRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "papers"
	}
	return &CachingPaperRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// List returns the cached listing for the year filter, loading it on a miss.
func (c *CachingPaperRepository) List(ctx context.Context, year *int) ([]entity.Paper, error) {
	if c.rdb == nil {
		return c.inner.List(ctx, year)
	}
	return readThrough(ctx, c, c.listKey(year), func() ([]entity.Paper, error) {
		return c.inner.List(ctx, year)
	})
}

// FindByID returns a cached paper, loading it on a miss. Not-found results are not cached.
func (c *CachingPaperRepository) FindByID(ctx context.Context, id uint) (*entity.Paper, error) {
	if c.rdb == nil {
		return c.inner.FindByID(ctx, id)
	}
	return readThrough(ctx, c, c.paperKey(id), func() (*entity.Paper, error) {
		return c.inner.FindByID(ctx, id)
	})
}

// ListByOwner is not cached.
func (c *CachingPaperRepository) ListByOwner(ctx context.Context, ownerID uint) ([]entity.Paper, error) {
	return c.inner.ListByOwner(ctx, ownerID)
}

func (c *CachingPaperRepository) Create(ctx context.Context, paper *entity.Paper) error {
	if err := c.inner.Create(ctx, paper); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *CachingPaperRepository) CreateBatch(ctx context.Context, papers []entity.Paper) error {
	if err := c.inner.CreateBatch(ctx, papers); err != nil {
		return err
	}
	if len(papers) > 0 {
		c.invalidate(ctx)
	}
	return nil
}

func (c *CachingPaperRepository) Update(ctx context.Context, paper *entity.Paper) error {
	if err := c.inner.Update(ctx, paper); err != nil {
		return err
	}
	c.invalidate(ctx, paper.ID)
	return nil
}

func (c *CachingPaperRepository) Delete(ctx context.Context, id uint) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

// readThrough checks the cache first, then falls back to load and stores the result.
func readThrough[T any](ctx context.Context, c *CachingPaperRepository, key string, load func() (T, error)) (T, error) {
	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out T
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to database
	out, err := load()
	if err != nil {
		var zero T
		return zero, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return out, nil
}

// invalidate drops every cached listing plus the given single-paper entries.
// Failures are ignored; entries expire after ttl regardless.
func (c *CachingPaperRepository) invalidate(ctx context.Context, ids ...uint) {
	if c.rdb == nil {
		return
	}
	_ = c.deleteByPattern(ctx, c.listKeyPrefix()+"*")
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.paperKey(id)
	}
	_ = c.rdb.Del(ctx, keys...).Err()
}

func (c *CachingPaperRepository) listKeyPrefix() string {
	return c.namespace + ":list:"
}

func (c *CachingPaperRepository) listKey(year *int) string {
	if year == nil {
		return c.listKeyPrefix() + "all"
	}
	return c.listKeyPrefix() + "year:" + strconv.Itoa(*year)
}

func (c *CachingPaperRepository) paperKey(id uint) string {
	return fmt.Sprintf("%s:paper:%d", c.namespace, id)
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingPaperRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}
