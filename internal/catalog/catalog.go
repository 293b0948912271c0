// Package catalog is the indexed, queryable store of part records. A
// catalog loads once from a Source, builds read-only indexes, and serves
// unsynchronized concurrent reads afterwards.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kairo-ai/kairo/internal/cache"
	"github.com/kairo-ai/kairo/internal/model"
)

// DefaultQueryTTL is how long search results stay cached.
const DefaultQueryTTL = 5 * time.Minute

// Source produces validated part records for a catalog. Implementations
// skip and log invalid records rather than failing the load.
type Source interface {
	LoadParts(ctx context.Context) ([]model.PartRecord, error)
}

// LoadError is the fatal error wrapping a failed catalog load.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("catalog load: %v", e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Catalog indexes part records by id and category. After Load it is
// read-only and safe for concurrent use.
type Catalog struct {
	source Source
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger

	parts      []model.PartRecord // catalog insertion order
	byID       map[string]int
	byCategory map[string][]int

	group singleflight.Group
	scans atomic.Int64 // full index scans performed (cache misses)
}

// New creates an unloaded catalog. A nil cache disables query caching;
// queryTTL <= 0 selects DefaultQueryTTL.
func New(source Source, c cache.Cache, queryTTL time.Duration, logger *slog.Logger) *Catalog {
	if queryTTL <= 0 {
		queryTTL = DefaultQueryTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		source: source,
		cache:  c,
		ttl:    queryTTL,
		logger: logger,
	}
}

// Load reads all parts from the source and builds the id and category
// indexes. A source failure is fatal and wrapped in *LoadError; individual
// invalid records were already dropped by the source.
func (c *Catalog) Load(ctx context.Context) error {
	parts, err := c.source.LoadParts(ctx)
	if err != nil {
		return &LoadError{Err: err}
	}

	c.parts = parts
	c.byID = make(map[string]int, len(parts))
	c.byCategory = make(map[string][]int)
	for i := range c.parts {
		p := &c.parts[i]
		if prev, dup := c.byID[p.ID]; dup {
			c.logger.Warn("catalog: duplicate part id, keeping first", "id", p.ID, "kept_mpn", c.parts[prev].MPN, "dropped_mpn", p.MPN)
			continue
		}
		c.byID[p.ID] = i
		cat := strings.ToLower(p.Category)
		c.byCategory[cat] = append(c.byCategory[cat], i)
	}

	c.logger.Info("catalog loaded", "parts", len(c.parts), "categories", len(c.byCategory))
	return nil
}

// Len returns the number of loaded parts.
func (c *Catalog) Len() int { return len(c.parts) }

// Scans returns the number of full index scans performed (i.e. cache
// misses). Exposed so tests can observe cache-hit behavior.
func (c *Catalog) Scans() int64 { return c.scans.Load() }

// GetByID looks up a single part record.
func (c *Catalog) GetByID(id string) (model.PartRecord, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.PartRecord{}, false
	}
	return c.parts[i], true
}

// Search returns all parts in the category matching the constraints, in
// catalog order. Category matching is exact-key first with a substring
// fallback for hierarchical tags ("regulator" matches "regulator_ldo" and
// "regulator_buck"). Repeated identical queries within the TTL window are
// served from the query cache; concurrent identical queries share one scan.
func (c *Catalog) Search(ctx context.Context, category string, cons Constraints) []model.PartRecord {
	key := CacheKey("catalog:search", strings.ToLower(category), cons)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			return v.([]model.PartRecord)
		}
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		results := c.scan(category, cons)
		if c.cache != nil {
			c.cache.Set(key, results, c.ttl)
		}
		return results, nil
	})
	return v.([]model.PartRecord)
}

// scan walks the category index applying constraint filters.
func (c *Catalog) scan(category string, cons Constraints) []model.PartRecord {
	c.scans.Add(1)

	cat := strings.ToLower(category)
	indexes, exact := c.byCategory[cat]
	if !exact {
		// Substring fallback over hierarchical category tags.
		var keys []string
		for k := range c.byCategory {
			if strings.Contains(k, cat) || strings.Contains(cat, k) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			indexes = append(indexes, c.byCategory[k]...)
		}
		sort.Ints(indexes) // preserve catalog order across merged buckets
	}

	results := make([]model.PartRecord, 0, len(indexes))
	for _, i := range indexes {
		if cons.Matches(&c.parts[i]) {
			results = append(results, c.parts[i])
		}
	}
	return results
}
