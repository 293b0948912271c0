// Package compat validates electrical, interface, and environmental
// compatibility between two parts. A deterministic rule tier decides the
// common case; only genuinely ambiguous pairs fall back to the external
// reasoning collaborator, and that path degrades to an optimistic warning
// rather than ever blocking the pipeline.
package compat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/kairo-ai/kairo/internal/cache"
	"github.com/kairo-ai/kairo/internal/model"
)

const (
	// DefaultResultTTL is how long pairwise verdicts stay cached.
	// Compatibility between two fixed parts does not change, so the TTL
	// is long.
	DefaultResultTTL = 24 * time.Hour

	// DefaultReasonerTimeout bounds one external reasoning call.
	DefaultReasonerTimeout = 15 * time.Second

	// logicLevelToleranceV is the logic-level delta above which a shared
	// interface still needs a level shifter.
	logicLevelToleranceV = 0.5

	// nominalToleranceV treats a source rail within this distance of a
	// nominal-only supply spec as matching.
	nominalToleranceV = 0.01
)

// Reasoner is the external reasoning collaborator consulted for
// ambiguous pairs. Implementations must respect ctx cancellation.
type Reasoner interface {
	Assess(ctx context.Context, a, b model.PartRecord, ct model.ConnectionType) (model.CompatibilityResult, error)
}

// Checker runs pairwise compatibility checks. Safe for concurrent use.
type Checker struct {
	reasoner Reasoner // nil disables the fallback tier entirely
	cache    cache.Cache
	ttl      time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	// fallbacks counts external-reasoner invocations; tests assert the
	// rule tier handles the common case without one.
	fallbacks atomic.Int64
}

// NewChecker creates a compatibility checker. A nil cache disables
// result caching; ttl/timeout <= 0 select the defaults.
func NewChecker(r Reasoner, c cache.Cache, ttl, timeout time.Duration, logger *slog.Logger) *Checker {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	if timeout <= 0 {
		timeout = DefaultReasonerTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{reasoner: r, cache: c, ttl: ttl, timeout: timeout, logger: logger}
}

// Fallbacks returns how many checks reached the external reasoner.
func (c *Checker) Fallbacks() int64 { return c.fallbacks.Load() }

// Check validates partA driving/talking-to partB over the given
// connection type. It always returns a verdict: ambiguity degrades to
// compatible-with-warning, never an error.
func (c *Checker) Check(ctx context.Context, a, b model.PartRecord, ct model.ConnectionType) model.CompatibilityResult {
	key := fmt.Sprintf("compat:%s:%s:%s", a.ID, b.ID, ct)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			return v.(model.CompatibilityResult)
		}
	}

	result := c.decide(ctx, a, b, ct)

	if c.cache != nil {
		c.cache.Set(key, result, c.ttl)
	}
	return result
}

// decide runs the two tiers in order.
func (c *Checker) decide(ctx context.Context, a, b model.PartRecord, ct model.ConnectionType) model.CompatibilityResult {
	verdict := evaluateRules(&a, &b, ct)
	if verdict.decisive {
		return verdict.result
	}

	// Fallback tier. Entered only when required fields are missing.
	c.fallbacks.Add(1)
	if c.reasoner == nil {
		c.logger.Debug("compat: no reasoner configured, degrading", "part_a", a.ID, "part_b", b.ID, "type", ct)
		return degraded(verdict.reason, "no external reasoner configured")
	}

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.reasoner.Assess(rctx, a, b, ct)
	if err != nil {
		reason := "external reasoning failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "external reasoning timed out"
		}
		c.logger.Warn("compat: degrading to optimistic verdict", "part_a", a.ID, "part_b", b.ID, "type", ct, "error", err)
		return degraded(verdict.reason, reason)
	}
	return result
}

// degraded is the defined optimistic variant for indeterminate pairs.
func degraded(why, how string) model.CompatibilityResult {
	return model.CompatibilityResult{
		Compatible: true,
		Reasoning:  why,
		Warnings:   []string{fmt.Sprintf("degraded confidence: %s; verify manually", how)},
	}
}

// ruleVerdict is the tagged result of the rule tier: either a decisive
// answer, or a statement of why external reasoning is needed.
type ruleVerdict struct {
	decisive bool
	result   model.CompatibilityResult
	reason   string // set when not decisive
}

func decisive(r model.CompatibilityResult) ruleVerdict {
	return ruleVerdict{decisive: true, result: r}
}

func needsReasoning(why string) ruleVerdict {
	return ruleVerdict{reason: why}
}

// evaluateRules is the deterministic tier. It never invokes anything
// external and must decide the common case.
func evaluateRules(a, b *model.PartRecord, ct model.ConnectionType) ruleVerdict {
	// Environmental: disjoint operating ranges fail regardless of
	// connection type.
	if !a.OperatingTemp.Overlaps(b.OperatingTemp) {
		return decisive(model.CompatibilityResult{
			Compatible: false,
			Reasoning:  fmt.Sprintf("operating temperature ranges of %s and %s are disjoint", a.ID, b.ID),
			Risks:      []string{"no shared operating temperature window"},
		})
	}

	switch ct {
	case model.ConnectionPower:
		return evaluatePower(a, b)
	case model.ConnectionInterface:
		return evaluateInterface(a, b)
	default:
		return needsReasoning(fmt.Sprintf("unknown connection type %q", ct))
	}
}

// evaluatePower checks the source rail of a against the supply window of b.
// An excluded rail returns the only verdict that can trigger intermediary
// resolution: incompatible with a populated voltage gap.
func evaluatePower(a, b *model.PartRecord) ruleVerdict {
	srcV, ok := a.SourceVoltage()
	if !ok {
		return needsReasoning(fmt.Sprintf("part %s declares no output or nominal voltage", a.ID))
	}
	if !b.SupplyVoltage.Defined() {
		return needsReasoning(fmt.Sprintf("part %s declares no supply voltage range", b.ID))
	}

	excluded := false
	if b.SupplyVoltage.Min != nil || b.SupplyVoltage.Max != nil {
		excluded = !b.SupplyVoltage.Contains(srcV)
	} else {
		// Nominal-only spec: anything off-nominal is excluded.
		excluded = math.Abs(srcV-*b.SupplyVoltage.Nominal) > nominalToleranceV
	}

	if excluded {
		gap := &model.VoltageGap{SourceVoltage: srcV}
		if b.SupplyVoltage.Min != nil {
			gap.TargetMin = *b.SupplyVoltage.Min
		}
		if b.SupplyVoltage.Max != nil {
			gap.TargetMax = *b.SupplyVoltage.Max
		}
		if b.SupplyVoltage.Nominal != nil {
			gap.TargetNominal = *b.SupplyVoltage.Nominal
		}
		return decisive(model.CompatibilityResult{
			Compatible: false,
			Reasoning:  fmt.Sprintf("%s supplies %.2fV, outside the supply window of %s", a.ID, srcV, b.ID),
			VoltageGap: gap,
		})
	}

	result := model.CompatibilityResult{
		Compatible: true,
		Reasoning:  fmt.Sprintf("%s rail %.2fV is within the supply window of %s", a.ID, srcV, b.ID),
	}
	// Current headroom check is advisory, never blocking.
	if a.Current.MaxA != nil && b.Current.MaxA != nil && *a.Current.MaxA < *b.Current.MaxA {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"source %s max current %.3fA is below the %.3fA max draw of %s",
			a.ID, *a.Current.MaxA, *b.Current.MaxA, b.ID))
	}
	return decisive(result)
}

// evaluateInterface intersects the declared interface sets. Interfaces
// cannot be bridged automatically, so an empty intersection is a hard
// incompatibility with no gap object; mismatched logic levels on a shared
// interface only require a level shifter.
func evaluateInterface(a, b *model.PartRecord) ruleVerdict {
	if len(a.Interfaces) == 0 || len(b.Interfaces) == 0 {
		return needsReasoning(fmt.Sprintf("part %s or %s declares no interfaces", a.ID, b.ID))
	}

	shared := model.InterfaceIntersection(a.Interfaces, b.Interfaces)
	if len(shared) == 0 {
		return decisive(model.CompatibilityResult{
			Compatible: false,
			Reasoning:  fmt.Sprintf("%s and %s share no interface", a.ID, b.ID),
			Risks:      []string{"no common bus; interfaces cannot be bridged automatically"},
		})
	}

	result := model.CompatibilityResult{
		Compatible: true,
		Reasoning:  fmt.Sprintf("%s and %s share: %v", a.ID, b.ID, shared),
	}
	if a.LogicLevelV != nil && b.LogicLevelV != nil &&
		math.Abs(*a.LogicLevelV-*b.LogicLevelV) > logicLevelToleranceV {
		result.RequiredBuffers = append(result.RequiredBuffers, "level_shifter")
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"logic levels differ (%.2fV vs %.2fV); insert a level shifter",
			*a.LogicLevelV, *b.LogicLevelV))
	}
	return decisive(result)
}

// SignalGap derives the voltage gap used to search for a level shifter
// when a shared interface runs at different logic levels. Returns nil
// when either side leaves its logic level undeclared.
func SignalGap(a, b *model.PartRecord) *model.VoltageGap {
	if a.LogicLevelV == nil || b.LogicLevelV == nil {
		return nil
	}
	return &model.VoltageGap{
		SourceVoltage: *a.LogicLevelV,
		TargetMin:     *b.LogicLevelV,
		TargetMax:     *b.LogicLevelV,
		TargetNominal: *b.LogicLevelV,
	}
}
