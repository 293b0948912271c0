// Package search ranks catalog parts against block preferences. The
// catalog finds what fits; this engine decides what fits best.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kairo-ai/kairo/internal/cache"
	"github.com/kairo-ai/kairo/internal/catalog"
	"github.com/kairo-ai/kairo/internal/model"
)

// CostBracket buckets unit cost for preference matching.
type CostBracket string

const (
	CostLow    CostBracket = "low"    // < $1
	CostMedium CostBracket = "medium" // $1 - $5
	CostHigh   CostBracket = "high"   // >= $5
)

// PackageFamily is the coarse mounting classification of a package name.
type PackageFamily string

const (
	FamilySMT         PackageFamily = "smt"
	FamilyThroughHole PackageFamily = "through_hole"
)

// Preferences express soft selection criteria. Unlike catalog constraints
// they never exclude a part, only move it up or down the ranking.
type Preferences struct {
	// PreferInStock rewards in-stock parts and penalizes everything else.
	PreferInStock bool
	// CostBracket is the preferred price bucket, empty for no preference.
	CostBracket CostBracket
	// PackageFamily is the preferred mounting style, empty for none.
	PackageFamily PackageFamily
	// RequiredSubsystems lists the functional keywords the block needs
	// (e.g. "mcu", "wifi"); a category covering two or more of them
	// counts as an integrated solution.
	RequiredSubsystems []string
}

// key returns the canonical cache-key fragment for the preferences.
func (p Preferences) key() string {
	subs := make([]string, len(p.RequiredSubsystems))
	for i, s := range p.RequiredSubsystems {
		subs[i] = strings.ToLower(s)
	}
	sort.Strings(subs)
	stock := "0"
	if p.PreferInStock {
		stock = "1"
	}
	return stock + ";" + string(p.CostBracket) + ";" + string(p.PackageFamily) + ";" + strings.Join(subs, ",")
}

// Weights are the ranking adjustment constants. They are empirically
// chosen and deliberately configurable rather than hard-coded; tune per
// product, they are not load-bearing correctness requirements.
type Weights struct {
	Base float64

	InStockBonus      float64
	OutOfStockPenalty float64

	ActiveBonus float64
	EOLPenalty  float64

	CostBracketBonus     float64 // low/medium match
	CostBracketHighBonus float64 // high match: never preferred, never punished

	PackageFamilyBonus float64

	IntegratedBonus float64 // category covers two or more required subsystems
	ModuleBonus     float64 // discrete module needing external support

	DocumentationBonus float64 // non-empty recommended-external list
}

// DefaultWeights returns the stock ranking constants.
func DefaultWeights() Weights {
	return Weights{
		Base:                 100,
		InStockBonus:         20,
		OutOfStockPenalty:    30,
		ActiveBonus:          15,
		EOLPenalty:           50,
		CostBracketBonus:     10,
		CostBracketHighBonus: 5,
		PackageFamilyBonus:   10,
		IntegratedBonus:      25,
		ModuleBonus:          10,
		DocumentationBonus:   15,
	}
}

// ScoredPart pairs a candidate with its ranking score.
type ScoredPart struct {
	Part  model.PartRecord `json:"part"`
	Score float64          `json:"score"`
}

// Engine ranks catalog search results. Results are cached in an
// independent key space from raw catalog queries, same TTL contract.
type Engine struct {
	catalog *catalog.Catalog
	cache   cache.Cache
	ttl     time.Duration
	weights Weights
	logger  *slog.Logger
}

// NewEngine creates a ranking engine over a loaded catalog. A nil cache
// disables result caching; ttl <= 0 selects the catalog default.
func NewEngine(cat *catalog.Catalog, c cache.Cache, ttl time.Duration, w Weights, logger *slog.Logger) *Engine {
	if ttl <= 0 {
		ttl = catalog.DefaultQueryTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{catalog: cat, cache: c, ttl: ttl, weights: w, logger: logger}
}

// SearchAndRank finds matching parts and returns them sorted descending
// by score. Ties keep catalog insertion order (stable sort).
func (e *Engine) SearchAndRank(ctx context.Context, category string, cons catalog.Constraints, prefs Preferences) []ScoredPart {
	key := rankCacheKey(category, cons, prefs)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return v.([]ScoredPart)
		}
	}

	candidates := e.catalog.Search(ctx, category, cons)
	scored := make([]ScoredPart, len(candidates))
	for i, p := range candidates {
		scored[i] = ScoredPart{Part: p, Score: e.Score(&candidates[i], prefs)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if e.cache != nil {
		e.cache.Set(key, scored, e.ttl)
	}
	return scored
}

// Score computes the ranking score for one part. Adjustments are additive
// and not mutually exclusive; each is independently testable.
func (e *Engine) Score(p *model.PartRecord, prefs Preferences) float64 {
	w := e.weights
	score := w.Base

	// Availability. The in-stock bonus is opt-in; the penalty for a part
	// that cannot be bought right now applies regardless of preference.
	if p.Availability == model.AvailabilityInStock {
		if prefs.PreferInStock {
			score += w.InStockBonus
		}
	} else {
		score -= w.OutOfStockPenalty
	}

	// Lifecycle.
	switch p.Lifecycle {
	case model.LifecycleActive:
		score += w.ActiveBonus
	case model.LifecycleEOL, model.LifecycleObsolete:
		score -= w.EOLPenalty
	}

	// Cost bracket.
	if prefs.CostBracket != "" && p.Cost != nil {
		switch bracket := BracketFor(p.Cost.Value); {
		case bracket == prefs.CostBracket && bracket != CostHigh:
			score += w.CostBracketBonus
		case bracket == prefs.CostBracket:
			score += w.CostBracketHighBonus
		}
	}

	// Package family.
	if prefs.PackageFamily != "" && ClassifyPackage(p.Package) == prefs.PackageFamily {
		score += w.PackageFamilyBonus
	}

	// Integration: a category covering several required subsystems beats
	// a discrete module that needs external support parts.
	covered := subsystemsCovered(p.Category, prefs.RequiredSubsystems)
	switch {
	case covered >= 2:
		score += w.IntegratedBonus
	case covered == 1 && len(p.RecommendedExternal) > 0:
		score += w.ModuleBonus
	}

	// Documentation completeness.
	if len(p.RecommendedExternal) > 0 {
		score += w.DocumentationBonus
	}

	return score
}

// BracketFor buckets a unit cost.
func BracketFor(unitCost float64) CostBracket {
	switch {
	case unitCost < 1:
		return CostLow
	case unitCost < 5:
		return CostMedium
	default:
		return CostHigh
	}
}

var smtKeywords = []string{
	"qfn", "qfp", "bga", "soic", "sop", "sot", "dfn", "lga", "csp", "wlcsp",
	"smd", "smt", "0201", "0402", "0603", "0805", "1206", "1210", "2512",
}

var throughHoleKeywords = []string{
	"dip", "to-220", "to-92", "to-247", "radial", "axial", "tht", "through",
}

// ClassifyPackage maps a package string to its mounting family, or empty
// when unrecognized.
func ClassifyPackage(pkg string) PackageFamily {
	lower := strings.ToLower(pkg)
	for _, kw := range smtKeywords {
		if strings.Contains(lower, kw) {
			return FamilySMT
		}
	}
	for _, kw := range throughHoleKeywords {
		if strings.Contains(lower, kw) {
			return FamilyThroughHole
		}
	}
	return ""
}

// subsystemsCovered counts how many required subsystem keywords the
// category tag mentions.
func subsystemsCovered(category string, required []string) int {
	lower := strings.ToLower(category)
	n := 0
	for _, sub := range required {
		if sub != "" && strings.Contains(lower, strings.ToLower(sub)) {
			n++
		}
	}
	return n
}

func rankCacheKey(category string, cons catalog.Constraints, prefs Preferences) string {
	sum := sha256.Sum256([]byte(strings.ToLower(category) + "|" + cons.Key() + "|" + prefs.key()))
	return "search:rank:" + hex.EncodeToString(sum[:8])
}
