package pipeline

import (
	"github.com/kairo-ai/kairo/internal/model"
	"github.com/kairo-ai/kairo/internal/search"
)

// RescoreWeights are the secondary engineering-review adjustments
// applied to the top search candidates before final selection. They
// deliberately re-weigh concerns the primary ranking already touched:
// this pass asks "would a hardware engineer sign off on this part",
// not "does it match the query".
type RescoreWeights struct {
	ActiveBonus float64
	EOLPenalty  float64

	InStockBonus      float64
	OutOfStockPenalty float64

	LowPowerBonus    float64 // estimated draw under 100 mW
	HighPowerPenalty float64 // estimated draw over 1 W

	SMTBonus           float64
	ThroughHolePenalty float64

	ThermalBonus float64 // thermal resistance under 50 C/W

	LowCostBonus float64 // unit cost under $1

	DocumentedBonus float64 // ships a recommended-external list
}

// DefaultRescoreWeights returns the stock engineering-review constants.
func DefaultRescoreWeights() RescoreWeights {
	return RescoreWeights{
		ActiveBonus:        20,
		EOLPenalty:         50,
		InStockBonus:       15,
		OutOfStockPenalty:  10,
		LowPowerBonus:      10,
		HighPowerPenalty:   5,
		SMTBonus:           5,
		ThroughHolePenalty: 5,
		ThermalBonus:       5,
		LowCostBonus:       5,
		DocumentedBonus:    10,
	}
}

const (
	lowPowerThresholdW  = 0.1
	highPowerThresholdW = 1.0
	thermalThresholdCW  = 50.0
	lowCostThresholdUSD = 1.0
	rescoreCandidateCap = 5
)

// Rescore computes the engineering adjustment for one part.
func (w RescoreWeights) Rescore(p *model.PartRecord) float64 {
	delta := 0.0

	switch p.Lifecycle {
	case model.LifecycleActive:
		delta += w.ActiveBonus
	case model.LifecycleEOL, model.LifecycleObsolete:
		delta -= w.EOLPenalty
	}

	switch p.Availability {
	case model.AvailabilityInStock:
		delta += w.InStockBonus
	case model.AvailabilityOutOfStock, model.AvailabilityBackorder:
		delta -= w.OutOfStockPenalty
	}

	if estimated := p.EstimatedPowerW(); estimated > 0 {
		switch {
		case estimated < lowPowerThresholdW:
			delta += w.LowPowerBonus
		case estimated > highPowerThresholdW:
			delta -= w.HighPowerPenalty
		}
	}

	switch search.ClassifyPackage(p.Package) {
	case search.FamilySMT:
		delta += w.SMTBonus
	case search.FamilyThroughHole:
		delta -= w.ThroughHolePenalty
	}

	if p.ThermalResistanceCW != nil && *p.ThermalResistanceCW < thermalThresholdCW {
		delta += w.ThermalBonus
	}

	if p.Cost != nil && p.Cost.Value < lowCostThresholdUSD {
		delta += w.LowCostBonus
	}

	if len(p.RecommendedExternal) > 0 {
		delta += w.DocumentedBonus
	}

	return delta
}

// pickBest applies the engineering re-score over the top candidates and
// returns the winner. The primary ranking decided who makes the
// shortlist; this pass decides who leaves it.
func (w RescoreWeights) pickBest(ranked []search.ScoredPart) (model.PartRecord, bool) {
	if len(ranked) == 0 {
		return model.PartRecord{}, false
	}
	limit := len(ranked)
	if limit > rescoreCandidateCap {
		limit = rescoreCandidateCap
	}

	bestIdx := 0
	bestScore := ranked[0].Score + w.Rescore(&ranked[0].Part)
	for i := 1; i < limit; i++ {
		score := ranked[i].Score + w.Rescore(&ranked[i].Part)
		if score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}
	return ranked[bestIdx].Part, true
}
