// Package pipeline runs the design resolution state machine: anchor
// selection, per-block part resolution with compatibility checks and
// intermediary insertion, datasheet enrichment, and output generation.
// One Orchestrator serves many runs; each run owns its DesignState.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kairo-ai/kairo/internal/catalog"
	"github.com/kairo-ai/kairo/internal/compat"
	"github.com/kairo-ai/kairo/internal/datasheet"
	"github.com/kairo-ai/kairo/internal/intermediary"
	"github.com/kairo-ai/kairo/internal/model"
	"github.com/kairo-ai/kairo/internal/output"
	"github.com/kairo-ai/kairo/internal/search"
	"github.com/kairo-ai/kairo/internal/telemetry"
)

// State is a phase of the resolution state machine.
type State string

const (
	StateInit             State = "init"
	StateAnchorSelected   State = "anchor_selected"
	StateBlockResolving   State = "block_resolving"
	StateEnriched         State = "enriched"
	StateOutputsGenerated State = "outputs_generated"
	StateDone             State = "done"
	StateError            State = "error"
)

// ErrNothingResolved is the only pipeline-level failure short of a
// catalog load error: no anchor and not a single resolved block.
var ErrNothingResolved = errors.New("pipeline: no anchor and no resolvable blocks")

// DefaultWorkers bounds the pool resolving independent blocks.
const DefaultWorkers = 4

// anchorMarginFactor widens the anchor's max draw when propagating a
// minimum supply-current requirement to power blocks.
const anchorMarginFactor = 1.3

// AnchorBlockName is the design-state key of the anchor part.
const AnchorBlockName = "anchor"

// categoryAliases maps architecture block types to catalog category
// keys where the vocabularies differ. Unlisted types pass through and
// rely on the catalog's substring fallback.
var categoryAliases = map[string]string{
	"power":        "regulator",
	"power_supply": "regulator",
}

// Result is what one run hands back: terminal state, the design (always
// present, possibly partial), and the blocks that had to be skipped.
type Result struct {
	RunID         uuid.UUID
	State         State
	Design        *model.DesignState
	SkippedBlocks []string
}

// Deps wires the pipeline stages together.
type Deps struct {
	Catalog   *catalog.Catalog
	Search    *search.Engine
	Compat    *compat.Checker
	Resolver  *intermediary.Resolver
	Datasheet *datasheet.Store // optional, nil disables enrichment
	Output    *output.Generator
	Logger    *slog.Logger
}

// Options tune a single orchestrator.
type Options struct {
	Workers  int            // bounded pool size for independent blocks
	Revision string         // BOM revision tag
	Rescore  RescoreWeights // engineering re-score constants
}

// Orchestrator drives resolution runs. Safe for concurrent use; each
// run owns its own DesignState.
type Orchestrator struct {
	deps    Deps
	workers int
	rev     string
	rescore RescoreWeights
	logger  *slog.Logger

	tracer        trace.Tracer
	runsStarted   metric.Int64Counter
	runsCompleted metric.Int64Counter
	blocksOK      metric.Int64Counter
	blocksSkipped metric.Int64Counter
}

// New creates an orchestrator. Zero-valued Options fields fall back to
// DefaultWorkers, revision "A" and DefaultRescoreWeights.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Revision == "" {
		opts.Revision = "A"
	}
	if opts.Rescore == (RescoreWeights{}) {
		opts.Rescore = DefaultRescoreWeights()
	}

	meter := telemetry.Meter("pipeline")
	runsStarted, _ := meter.Int64Counter("kairo.pipeline.runs_started")
	runsCompleted, _ := meter.Int64Counter("kairo.pipeline.runs_completed")
	blocksOK, _ := meter.Int64Counter("kairo.pipeline.blocks_resolved")
	blocksSkipped, _ := meter.Int64Counter("kairo.pipeline.blocks_skipped")

	return &Orchestrator{
		deps:          deps,
		workers:       opts.Workers,
		rev:           opts.Revision,
		rescore:       opts.Rescore,
		logger:        deps.Logger,
		tracer:        telemetry.Tracer("pipeline"),
		runsStarted:   runsStarted,
		runsCompleted: runsCompleted,
		blocksOK:      blocksOK,
		blocksSkipped: blocksSkipped,
	}
}

// run carries the per-run mutable context so Orchestrator itself stays
// stateless across runs.
type run struct {
	o       *Orchestrator
	id      uuid.UUID
	arch    model.ArchitectureGraph
	design  *model.DesignState
	state   State
	skipped []string
	logger  *slog.Logger

	// propagated constraints derived from the anchor
	anchorPart *model.PartRecord
	minSupplyA *float64
}

// Run executes the full pipeline over one architecture document. Block
// failures are absorbed and logged; the returned Result always carries
// the (possibly partial) design state, even alongside a non-nil error.
func (o *Orchestrator) Run(ctx context.Context, arch model.ArchitectureGraph) (*Result, error) {
	id := uuid.New()
	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run.id", id.String())))
	defer span.End()
	o.runsStarted.Add(ctx, 1)

	r := &run{
		o:      o,
		id:     id,
		arch:   arch,
		design: model.NewDesignState(),
		state:  StateInit,
		logger: o.logger.With("run_id", id.String()),
	}
	r.logger.Info("pipeline run started",
		"anchor_type", arch.AnchorBlock.Type, "child_blocks", len(arch.ChildBlocks))

	r.selectAnchor(ctx)
	r.resolveBlocks(ctx)

	if r.anchorPart == nil && r.design.PartCount() == 0 {
		r.state = StateError
		r.logger.Error("pipeline run failed", "reason", "nothing resolved")
		return r.result(), ErrNothingResolved
	}

	r.enrich(ctx)
	r.generateOutputs(ctx)

	r.design.Finalize()
	r.state = StateDone
	o.runsCompleted.Add(ctx, 1)
	r.logger.Info("pipeline run done",
		"parts", r.design.PartCount(), "skipped_blocks", len(r.skipped))
	return r.result(), nil
}

func (r *run) result() *Result {
	return &Result{RunID: r.id, State: r.state, Design: r.design, SkippedBlocks: r.skipped}
}

// selectAnchor resolves the anchor block. An empty result is non-fatal:
// downstream blocks simply skip compatibility checks.
func (r *run) selectAnchor(ctx context.Context) {
	ctx, span := r.o.tracer.Start(ctx, "pipeline.select_anchor")
	defer span.End()

	block := r.arch.AnchorBlock
	cons := r.blockConstraints(block)
	active := model.LifecycleActive
	inStock := model.AvailabilityInStock
	if cons.Lifecycle == nil {
		cons.Lifecycle = &active
	}
	if cons.Availability == nil {
		cons.Availability = &inStock
	}

	ranked := r.o.deps.Search.SearchAndRank(ctx, blockCategory(block.Type), cons, r.blockPrefs(block))
	part, ok := r.o.rescore.pickBest(ranked)
	if !ok {
		r.logger.Warn("no anchor candidate found, continuing without anchor",
			"anchor_type", block.Type)
		r.state = StateAnchorSelected
		return
	}

	if err := r.design.AddPart(AnchorBlockName, part); err != nil {
		r.logger.Error("recording anchor failed", "error", err)
		return
	}
	if err := r.design.AddExternalComponents(part.RecommendedExternal...); err != nil {
		r.logger.Error("recording anchor externals failed", "error", err)
	}
	r.anchorPart = &part

	// Requirement expansion: the anchor's draw (with margin) becomes the
	// minimum capacity demanded of power blocks.
	if maxA := part.MaxCurrentA(); maxA > 0 {
		required := maxA * anchorMarginFactor
		r.minSupplyA = &required
	}

	r.state = StateAnchorSelected
	r.logger.Info("anchor selected", "part", part.ID, "mpn", part.MPN)
}

// blockOutcome is one worker's fully computed result. It is merged into
// the design state whole, or not at all.
type blockOutcome struct {
	block     string
	part      model.PartRecord
	pair      model.CompatibilityPair
	inters    []intermediaryInsert
	externals []model.PassiveSpec
	skipped   bool
	reason    string
}

type intermediaryInsert struct {
	direction model.IntermediaryDirection
	name      string
	part      model.PartRecord
}

// resolveBlocks resolves all child blocks: independent blocks through
// a bounded worker pool, dependent blocks sequentially once everything
// they wait on has been attempted. Merging into the design state is
// serialized in the coordinating goroutine.
func (r *run) resolveBlocks(ctx context.Context) {
	ctx, span := r.o.tracer.Start(ctx, "pipeline.resolve_blocks")
	defer span.End()
	r.state = StateBlockResolving

	var independent, dependent []model.BlockDescriptor
	for _, block := range r.arch.ChildBlocks {
		if r.arch.IndependentOf(block) {
			independent = append(independent, block)
		} else {
			dependent = append(dependent, block)
		}
	}

	// Independent blocks: each worker computes a local outcome; the
	// slice write is the only shared mutation and holds the lock just
	// long enough to append.
	outcomes := make([]*blockOutcome, len(independent))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.o.workers)
	for i, block := range independent {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			out := r.resolveBlock(gctx, block)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("block resolution cancelled", "error", err)
	}
	for i, out := range outcomes {
		if out == nil {
			// Worker never ran; the block was neither resolved nor
			// rejected, so surface it instead of dropping it.
			r.skip(independent[i].Type, "resolution cancelled")
			continue
		}
		r.merge(out)
	}

	// Dependent blocks run strictly after their dependencies have been
	// attempted, in passes so chains resolve in order.
	attempted := make(map[string]bool)
	for _, block := range independent {
		attempted[block.Type] = true
	}
	pending := dependent
	for len(pending) > 0 {
		var next []model.BlockDescriptor
		progressed := false
		for _, block := range pending {
			if !r.depsAttempted(block, attempted) {
				next = append(next, block)
				continue
			}
			r.merge(r.resolveBlock(ctx, block))
			attempted[block.Type] = true
			progressed = true
		}
		if !progressed {
			for _, block := range next {
				r.skip(block.Type, "unresolvable dependency cycle")
			}
			break
		}
		pending = next
	}
}

func (r *run) depsAttempted(block model.BlockDescriptor, attempted map[string]bool) bool {
	for _, dep := range r.arch.Dependencies(block) {
		if dep == "power" || dep == AnchorBlockName || dep == r.arch.AnchorBlock.Type {
			continue
		}
		if !attempted[dep] {
			return false
		}
	}
	return true
}

// merge applies one block outcome to the design state. This is the
// single point of write contention and always runs in the coordinator.
func (r *run) merge(out *blockOutcome) {
	if out.skipped {
		r.skip(out.block, out.reason)
		return
	}
	if err := r.design.AddPart(out.block, out.part); err != nil {
		r.logger.Error("merging block failed", "block", out.block, "error", err)
		return
	}
	if err := r.design.SetCompatibility(out.block, out.pair); err != nil {
		r.logger.Error("recording compatibility failed", "block", out.block, "error", err)
	}
	for _, ins := range out.inters {
		err := r.design.AddIntermediary(out.block, ins.direction, ins.name, ins.part)
		if err != nil {
			r.logger.Error("inserting intermediary failed", "block", out.block, "error", err)
		}
	}
	if len(out.externals) > 0 {
		if err := r.design.AddExternalComponents(out.externals...); err != nil {
			r.logger.Error("recording externals failed", "block", out.block, "error", err)
		}
	}
	r.o.blocksOK.Add(context.Background(), 1)
	r.logger.Info("block resolved", "block", out.block, "part", out.part.ID)
}

func (r *run) skip(block, reason string) {
	r.skipped = append(r.skipped, block)
	r.o.blocksSkipped.Add(context.Background(), 1)
	r.logger.Warn("block skipped", "block", block, "reason", reason)
}

// resolveBlock computes one child block's outcome without touching the
// shared design state.
func (r *run) resolveBlock(ctx context.Context, block model.BlockDescriptor) *blockOutcome {
	ctx, span := r.o.tracer.Start(ctx, "pipeline.resolve_block",
		trace.WithAttributes(attribute.String("block", block.Type)))
	defer span.End()

	out := &blockOutcome{block: block.Type}

	cons := r.blockConstraints(block)
	if isPowerBlock(block) && r.minSupplyA != nil && cons.MinCurrentA == nil {
		cons.MinCurrentA = r.minSupplyA
	}

	ranked := r.o.deps.Search.SearchAndRank(ctx, blockCategory(block.Type), cons, r.blockPrefs(block))
	part, ok := r.o.rescore.pickBest(ranked)
	if !ok {
		out.skipped = true
		out.reason = "no matching part"
		return out
	}
	out.part = part
	out.externals = append(out.externals, part.RecommendedExternal...)

	if r.anchorPart == nil {
		return out // nothing to check against
	}

	// Power compatibility. Power blocks feed the anchor; everything else
	// is fed from the anchor's rail.
	source, target := *r.anchorPart, part
	if isPowerBlock(block) {
		source, target = part, *r.anchorPart
	}
	power := r.o.deps.Compat.Check(ctx, source, target, model.ConnectionPower)
	out.pair.Power = &power
	if !power.Compatible {
		if power.VoltageGap == nil {
			out.skipped = true
			out.reason = "power incompatible: " + power.Reasoning
			return out
		}
		if !r.insertIntermediary(ctx, out, source, target, model.ConnectionPower, *power.VoltageGap) {
			out.skipped = true
			out.reason = "no viable power intermediary"
			return out
		}
	}

	// Interface compatibility always runs. A level-shifter requirement
	// takes the intermediary path with a signal gap; any other mismatch
	// skips the block.
	iface := r.o.deps.Compat.Check(ctx, *r.anchorPart, part, model.ConnectionInterface)
	out.pair.Interface = &iface
	switch {
	case needsLevelShifter(iface):
		// The rule tier flags the shifter even when the verdict itself
		// passes with a warning, so this runs regardless of Compatible.
		gap := compat.SignalGap(r.anchorPart, &part)
		if gap == nil || !r.insertIntermediary(ctx, out, *r.anchorPart, part, model.ConnectionInterface, *gap) {
			out.skipped = true
			out.reason = "no viable level shifter"
			return out
		}
	case !iface.Compatible:
		out.skipped = true
		out.reason = "interface incompatible: " + iface.Reasoning
		return out
	}

	return out
}

// insertIntermediary finds a bridging part for a gap, re-validates it
// against the target, and stages the insertion on success.
func (r *run) insertIntermediary(ctx context.Context, out *blockOutcome, source, target model.PartRecord, ct model.ConnectionType, gap model.VoltageGap) bool {
	candidates := r.o.deps.Resolver.FindIntermediary(ctx, source, target, ct, gap)
	direction := model.IntermediaryPower
	suffix := "_power"
	if ct == model.ConnectionInterface {
		direction = model.IntermediarySignal
		suffix = "_level"
	}
	for i := range candidates {
		cand := candidates[i]
		recheck := r.o.deps.Compat.Check(ctx, cand, target, ct)
		if !recheck.Compatible {
			continue
		}
		out.inters = append(out.inters, intermediaryInsert{
			direction: direction,
			name:      out.block + suffix,
			part:      cand,
		})
		out.externals = append(out.externals, cand.RecommendedExternal...)
		r.logger.Info("intermediary selected",
			"block", out.block, "part", cand.ID, "connection", string(ct))
		return true
	}
	return false
}

// enrich merges datasheet attributes into every selected part.
func (r *run) enrich(ctx context.Context) {
	ctx, span := r.o.tracer.Start(ctx, "pipeline.enrich")
	defer span.End()

	if r.o.deps.Datasheet != nil {
		for _, block := range r.design.BlockNames() {
			part, ok := r.design.Part(block)
			if !ok {
				continue
			}
			enriched := r.o.deps.Datasheet.Enrich(ctx, part)
			if err := r.design.AddPart(block, enriched); err != nil {
				r.logger.Error("recording enriched part failed", "block", block, "error", err)
			}
		}
	}
	r.state = StateEnriched
}

// generateOutputs derives the netlist and BOM from the final state.
func (r *run) generateOutputs(ctx context.Context) {
	_, span := r.o.tracer.Start(ctx, "pipeline.generate_outputs")
	defer span.End()

	nets := r.o.deps.Output.Netlist(r.design)
	bom := r.o.deps.Output.BOM(r.design, nets, r.o.rev)
	if err := r.design.SetOutputs(nets, bom); err != nil {
		r.logger.Error("recording outputs failed", "error", err)
		return
	}
	r.state = StateOutputsGenerated
}

// blockConstraints builds search constraints from the block descriptor
// and any upstream per-block constraint document.
func (r *run) blockConstraints(block model.BlockDescriptor) catalog.Constraints {
	bc := r.arch.ConstraintsPerBlock[block.Type]
	return catalog.FromBlock(bc, block.RequiredInterfaces)
}

func (r *run) blockPrefs(block model.BlockDescriptor) search.Preferences {
	subs := make([]string, 0, len(block.RequiredInterfaces)+1)
	subs = append(subs, strings.Split(block.Type, "_")...)
	subs = append(subs, block.RequiredInterfaces...)
	return search.Preferences{
		PreferInStock:      true,
		RequiredSubsystems: subs,
	}
}

func isPowerBlock(block model.BlockDescriptor) bool {
	return strings.Contains(strings.ToLower(block.Type), "power")
}

func needsLevelShifter(res model.CompatibilityResult) bool {
	for _, b := range res.RequiredBuffers {
		if b == "level_shifter" {
			return true
		}
	}
	return false
}

func blockCategory(blockType string) string {
	key := strings.ToLower(strings.TrimSpace(blockType))
	if alias, ok := categoryAliases[key]; ok {
		return alias
	}
	return key
}
