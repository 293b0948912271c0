// Package intermediary finds bridging components (regulators, level
// shifters) for voltage and logic-level gaps reported by the
// compatibility checker.
package intermediary

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kairo-ai/kairo/internal/catalog"
	"github.com/kairo-ai/kairo/internal/model"
)

const (
	// currentMargin is the headroom factor applied to the target's
	// estimated draw when filtering converter capacity.
	currentMargin = 1.2

	// defaultRequiredCurrentA stands in when the target declares no draw
	// at all.
	defaultRequiredCurrentA = 0.1

	// defaultEfficiency scores converters that don't declare one.
	defaultEfficiency = 0.5
)

// Resolver searches the catalog for intermediary parts.
type Resolver struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewResolver creates an intermediary resolver over a loaded catalog.
func NewResolver(cat *catalog.Catalog, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{catalog: cat, logger: logger}
}

// converterTypes is the decision table mapping a connection type and
// voltage difference (source minus target nominal) to the catalog
// categories to search, primary first.
func converterTypes(ct model.ConnectionType, voltageDiff float64) []string {
	if ct == model.ConnectionInterface {
		return []string{"level_shifter"}
	}
	switch {
	case voltageDiff <= 0:
		return []string{"regulator_boost"}
	case voltageDiff < 1.0:
		return []string{"regulator_ldo", "regulator_buck"}
	case voltageDiff < 1.5:
		return []string{"regulator_buck", "regulator_ldo"}
	default:
		return []string{"regulator_buck"}
	}
}

// FindIntermediary returns ranked candidates that bridge the given gap
// between source and target. An empty result means the gap cannot be
// bridged from this catalog and the caller should skip the block.
func (r *Resolver) FindIntermediary(ctx context.Context, source, target model.PartRecord, ct model.ConnectionType, gap model.VoltageGap) []model.PartRecord {
	required := r.EstimateRequiredCurrent(target)
	voltageDiff := gap.SourceVoltage - gap.TargetNominal
	categories := converterTypes(ct, voltageDiff)

	// Gather candidates from every category in table order, dedup by id.
	seen := make(map[string]bool)
	var candidates []model.PartRecord
	for _, cat := range categories {
		for _, p := range r.catalog.Search(ctx, cat, catalog.Constraints{}) {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			if r.bridges(&p, ct, gap, required) {
				candidates = append(candidates, p)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return score(&candidates[i], required) > score(&candidates[j], required)
	})

	r.logger.Debug("intermediary search",
		"source", source.ID, "target", target.ID, "type", ct,
		"voltage_diff", voltageDiff, "candidates", len(candidates))
	return candidates
}

// bridges applies the electrical filters: the candidate must accept the
// source voltage, produce something the target accepts, and carry the
// required current with margin. Unspecified capacities and outputs are
// unknown, not excluded.
func (r *Resolver) bridges(p *model.PartRecord, ct model.ConnectionType, gap model.VoltageGap, required float64) bool {
	if p.SupplyVoltage.Defined() && !p.SupplyVoltage.Contains(gap.SourceVoltage) {
		return false
	}
	if ct == model.ConnectionPower && p.OutputVoltage != nil {
		out := *p.OutputVoltage
		if gap.TargetMin != 0 && out < gap.TargetMin {
			return false
		}
		if gap.TargetMax != 0 && out > gap.TargetMax {
			return false
		}
	}
	if p.Current.MaxA != nil && *p.Current.MaxA < required*currentMargin {
		return false
	}
	return true
}

// score ranks a bridging candidate: efficiency dominates, then current
// headroom, then cost. Higher is better.
func score(p *model.PartRecord, required float64) float64 {
	eff := defaultEfficiency
	if p.Efficiency != nil {
		eff = *p.Efficiency
	}

	// Capacity proxy: headroom over the margined requirement, saturating
	// at its full 0.3 share.
	capacityProxy := 0.0
	if p.Current.MaxA != nil && required > 0 {
		capacityProxy = *p.Current.MaxA / (required * currentMargin)
	}

	s := 0.4 * eff
	if v := 0.3 * capacityProxy; v < 0.3 {
		s += v
	} else {
		s += 0.3
	}
	if v := 0.3 - p.UnitCost()/10; v > 0 {
		s += v
	}
	return s
}

// EstimateRequiredCurrent estimates the draw an intermediary must supply
// for the target part: declared max, then typical, then a conservative
// default.
func (r *Resolver) EstimateRequiredCurrent(target model.PartRecord) float64 {
	if target.Current.MaxA != nil {
		return *target.Current.MaxA
	}
	if target.Current.TypicalA != nil {
		return *target.Current.TypicalA
	}
	return defaultRequiredCurrentA
}
