package search

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairo-ai/kairo/internal/cache"
	"github.com/kairo-ai/kairo/internal/catalog"
	"github.com/kairo-ai/kairo/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func f(v float64) *float64 { return &v }

type sliceSource []model.PartRecord

func (s sliceSource) LoadParts(ctx context.Context) ([]model.PartRecord, error) {
	return s, nil
}

func newEngine(t *testing.T, parts []model.PartRecord, c cache.Cache) *Engine {
	t.Helper()
	cat := catalog.New(sliceSource(parts), nil, time.Minute, testLogger())
	require.NoError(t, cat.Load(context.Background()))
	return NewEngine(cat, c, time.Minute, DefaultWeights(), testLogger())
}

func basePart(id string) model.PartRecord {
	return model.PartRecord{
		ID: id, MPN: "MPN-" + id, Manufacturer: "Acme", Category: "mcu",
		Lifecycle:    model.LifecycleActive,
		Availability: model.AvailabilityInStock,
	}
}

func TestScore_Availability(t *testing.T) {
	e := newEngine(t, nil, nil)

	p := basePart("a")
	inStock := e.Score(&p, Preferences{PreferInStock: true})
	p.Availability = model.AvailabilityBackorder
	backorder := e.Score(&p, Preferences{PreferInStock: true})

	assert.Equal(t, 50.0, inStock-backorder, "in_stock +20 vs not-in-stock -30")

	// Without the preference expressed the bonus disappears, but a part
	// that cannot be bought right now is still penalized.
	p.Availability = model.AvailabilityInStock
	a := e.Score(&p, Preferences{})
	p.Availability = model.AvailabilityOutOfStock
	b := e.Score(&p, Preferences{})
	assert.Equal(t, 30.0, a-b, "out-of-stock -30 is unconditional")
}

func TestScore_Lifecycle(t *testing.T) {
	e := newEngine(t, nil, nil)

	p := basePart("a")
	active := e.Score(&p, Preferences{})
	p.Lifecycle = model.LifecycleObsolete
	obsolete := e.Score(&p, Preferences{})
	p.Lifecycle = model.LifecycleLastTimeBuy
	ltb := e.Score(&p, Preferences{})

	assert.Equal(t, 65.0, active-obsolete, "active +15 vs obsolete -50")
	assert.Equal(t, 15.0, active-ltb, "last_time_buy gets neither bonus nor penalty")
}

func TestScore_CostBracket(t *testing.T) {
	e := newEngine(t, nil, nil)

	p := basePart("a")
	p.Cost = &model.CostEstimate{Value: 0.42, Currency: "USD", Quantity: 1}
	low := e.Score(&p, Preferences{CostBracket: CostLow})
	none := e.Score(&p, Preferences{})
	assert.Equal(t, 10.0, low-none)

	p.Cost.Value = 7.50
	high := e.Score(&p, Preferences{CostBracket: CostHigh})
	assert.Equal(t, 5.0, high-none, "high-cost match earns the reduced bonus")

	miss := e.Score(&p, Preferences{CostBracket: CostLow})
	assert.Equal(t, none, miss, "bracket mismatch is not penalized")
}

func TestScore_PackageFamily(t *testing.T) {
	e := newEngine(t, nil, nil)

	p := basePart("a")
	p.Package = "QFN-32"
	smt := e.Score(&p, Preferences{PackageFamily: FamilySMT})
	none := e.Score(&p, Preferences{})
	assert.Equal(t, 10.0, smt-none)

	p.Package = "DIP-28"
	tht := e.Score(&p, Preferences{PackageFamily: FamilySMT})
	assert.Equal(t, none, tht)
}

func TestScore_IntegrationAndDocumentation(t *testing.T) {
	e := newEngine(t, nil, nil)
	prefs := Preferences{RequiredSubsystems: []string{"mcu", "wifi"}}

	integrated := basePart("a")
	integrated.Category = "mcu_wifi"
	discrete := basePart("b")
	discrete.Category = "mcu"
	discrete.RecommendedExternal = []model.PassiveSpec{{Kind: "capacitor", Value: "100nF", Qty: 2}}

	si := e.Score(&integrated, prefs)
	sd := e.Score(&discrete, prefs)

	// Integrated +25 vs module +10+15 documentation: equal here, by the
	// independent-adjustment rule.
	assert.Equal(t, si, sd)

	// Documentation alone.
	plain := basePart("c")
	documented := plain
	documented.RecommendedExternal = []model.PassiveSpec{{Kind: "resistor", Value: "10k", Qty: 1}}
	assert.Equal(t, 15.0, e.Score(&documented, Preferences{})-e.Score(&plain, Preferences{}))
}

func TestSearchAndRank_SortedStable(t *testing.T) {
	eol := basePart("p1")
	eol.Lifecycle = model.LifecycleEOL
	twinA := basePart("p2")
	twinB := basePart("p3") // identical score to p2; catalog order must hold
	e := newEngine(t, []model.PartRecord{eol, twinA, twinB}, nil)

	got := e.SearchAndRank(context.Background(), "mcu", catalog.Constraints{}, Preferences{})
	require.Len(t, got, 3)

	assert.Equal(t, "p2", got[0].Part.ID)
	assert.Equal(t, "p3", got[1].Part.ID)
	assert.Equal(t, "p1", got[2].Part.ID, "eol part sinks")
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.GreaterOrEqual(t, got[1].Score, got[2].Score)
}

func TestSearchAndRank_CacheIndependentKeySpace(t *testing.T) {
	mem := cache.NewMemory()
	defer mem.Close()

	cat := catalog.New(sliceSource([]model.PartRecord{basePart("p1")}), mem, time.Minute, testLogger())
	require.NoError(t, cat.Load(context.Background()))
	e := NewEngine(cat, mem, time.Minute, DefaultWeights(), testLogger())

	first := e.SearchAndRank(context.Background(), "mcu", catalog.Constraints{}, Preferences{})
	require.EqualValues(t, 1, cat.Scans())

	second := e.SearchAndRank(context.Background(), "mcu", catalog.Constraints{}, Preferences{})
	assert.EqualValues(t, 1, cat.Scans())
	assert.Equal(t, first, second)

	// Different preferences miss the ranked cache but still hit the raw
	// catalog query cache underneath.
	e.SearchAndRank(context.Background(), "mcu", catalog.Constraints{}, Preferences{PreferInStock: true})
	assert.EqualValues(t, 1, cat.Scans())
}

func TestBracketFor(t *testing.T) {
	assert.Equal(t, CostLow, BracketFor(0.99))
	assert.Equal(t, CostMedium, BracketFor(1.00))
	assert.Equal(t, CostMedium, BracketFor(4.99))
	assert.Equal(t, CostHigh, BracketFor(5.00))
}

func TestClassifyPackage(t *testing.T) {
	assert.Equal(t, FamilySMT, ClassifyPackage("QFN-32"))
	assert.Equal(t, FamilySMT, ClassifyPackage("0603"))
	assert.Equal(t, FamilyThroughHole, ClassifyPackage("TO-220"))
	assert.Equal(t, PackageFamily(""), ClassifyPackage("module"))
}
