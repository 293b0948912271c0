// Package kairo is the public API for embedding the Kairo design
// resolution pipeline.
//
// Agent hosts and tooling import this package to construct and extend
// the pipeline without forking it:
//
//	app, err := kairo.New(
//	    kairo.WithVersion(version),
//	    kairo.WithLogger(logger),
//	    kairo.WithReasoner(myReasoner),
//	)
//	if err != nil { ... }
//	defer app.Close(context.Background())
//	result, err := app.Resolve(ctx, architectureJSON)
//
// The import graph enforces a strict no-cycle rule: kairo (root) imports
// internal/*, but internal/* never imports kairo (root). Public types
// (Part, Assessment, etc.) are standalone structs with no internal
// imports; conversion helpers (toPublicPart, toPublicAssessment) live
// here because this is the only file that sees both sides of the
// boundary.
package kairo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/kairo-ai/kairo/internal/cache"
	"github.com/kairo-ai/kairo/internal/catalog"
	"github.com/kairo-ai/kairo/internal/compat"
	"github.com/kairo-ai/kairo/internal/config"
	"github.com/kairo-ai/kairo/internal/datasheet"
	"github.com/kairo-ai/kairo/internal/intermediary"
	"github.com/kairo-ai/kairo/internal/mcp"
	"github.com/kairo-ai/kairo/internal/model"
	"github.com/kairo-ai/kairo/internal/output"
	"github.com/kairo-ai/kairo/internal/pipeline"
	"github.com/kairo-ai/kairo/internal/search"
	"github.com/kairo-ai/kairo/internal/telemetry"
)

// App is the assembled pipeline lifecycle. Construct with New(), tear
// down with Close(). App has no public fields — use New() options to
// configure it.
type App struct {
	cfg          config.Config
	catalog      *catalog.Catalog
	engine       *search.Engine
	checker      *compat.Checker
	orchestrator *pipeline.Orchestrator
	mcp          *mcp.Server
	sheets       *datasheet.Store        // nil when enrichment is disabled
	pgSource     *catalog.PostgresSource // nil when loading from files
	watcher      *catalog.Watcher        // nil unless file watching is enabled
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the pipeline. It loads the catalog, wires all stages,
// and returns a ready-to-use App. It does NOT start any goroutines —
// call Run() for the long-lived MCP server mode, or use Resolve(),
// SearchParts() and CheckCompatibility() directly for one-shot work.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.catalogDir != "" {
		cfg.CatalogDir = o.catalogDir
	}
	if o.catalogGlob != "" {
		cfg.CatalogGlob = o.catalogGlob
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.datasheetPath != "" {
		cfg.DatasheetPath = o.datasheetPath
	}
	if o.workers != 0 {
		cfg.Workers = o.workers
	}
	if o.bomRevision != "" {
		cfg.BOMRevision = o.bomRevision
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("kairo starting", "version", version)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	fail := func(err error) (*App, error) {
		_ = otelShutdown(context.Background())
		return nil, err
	}

	// Catalog source: Postgres when configured, per-category JSON files
	// otherwise.
	var source catalog.Source
	var pgSource *catalog.PostgresSource
	if cfg.DatabaseURL != "" {
		pgSource, err = catalog.NewPostgresSource(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			return fail(fmt.Errorf("catalog source: %w", err))
		}
		source = pgSource
		logger.Info("catalog source: postgres")
	} else {
		source = catalog.NewFileSource(cfg.CatalogDir, cfg.CatalogGlob, logger)
		logger.Info("catalog source: files", "dir", cfg.CatalogDir, "glob", cfg.CatalogGlob)
	}

	mem := cache.NewMemory()

	cat := catalog.New(source, mem, cfg.QueryTTL, logger)
	if err := cat.Load(context.Background()); err != nil {
		if pgSource != nil {
			pgSource.Close()
		}
		return fail(fmt.Errorf("catalog: %w", err))
	}

	engine := search.NewEngine(cat, mem, cfg.QueryTTL, search.DefaultWeights(), logger)

	// Reasoning collaborator — external override takes priority over the
	// HTTP client; neither configured means rule-tier only.
	var reasoner compat.Reasoner
	switch {
	case o.reasoner != nil:
		reasoner = &reasonerAdapter{r: o.reasoner}
		logger.Info("reasoner: external override")
	case cfg.ReasonerURL != "":
		reasoner = compat.NewHTTPReasoner(cfg.ReasonerURL, cfg.ReasonerAPIKey, cfg.ReasonerTimeout)
		logger.Info("reasoner: http", "url", cfg.ReasonerURL)
	default:
		logger.Info("reasoner: disabled (rule tier only, undecidable checks degrade)")
	}
	checker := compat.NewChecker(reasoner, mem, cfg.CompatTTL, cfg.ReasonerTimeout, logger)

	resolver := intermediary.NewResolver(cat, logger)

	// Datasheet enrichment store (optional).
	var sheets *datasheet.Store
	if cfg.DatasheetPath != "" {
		sheets, err = datasheet.Open(cfg.DatasheetPath, logger)
		if err != nil {
			if pgSource != nil {
				pgSource.Close()
			}
			return fail(fmt.Errorf("datasheet store: %w", err))
		}
		logger.Info("datasheet enrichment: enabled", "path", cfg.DatasheetPath)
	} else {
		logger.Info("datasheet enrichment: disabled (no KAIRO_DATASHEET_PATH)")
	}

	orch := pipeline.New(pipeline.Deps{
		Catalog:   cat,
		Search:    engine,
		Compat:    checker,
		Resolver:  resolver,
		Datasheet: sheets,
		Output:    output.NewGenerator(logger),
		Logger:    logger,
	}, pipeline.Options{
		Workers:  cfg.Workers,
		Revision: cfg.BOMRevision,
	})

	mcpSrv := mcp.New(cat, engine, checker, orch, logger)

	// Directory watcher for hot reload (file source only).
	var watcher *catalog.Watcher
	if cfg.WatchCatalog && cfg.DatabaseURL == "" {
		watcher = catalog.NewWatcher(cfg.CatalogDir, cfg.WatchDebounce, func(ctx context.Context) {
			if err := cat.Load(ctx); err != nil {
				logger.Error("catalog reload failed, serving stale catalog", "error", err)
			}
		}, logger)
	}

	return &App{
		cfg:          cfg,
		catalog:      cat,
		engine:       engine,
		checker:      checker,
		orchestrator: orch,
		mcp:          mcpSrv,
		sheets:       sheets,
		pgSource:     pgSource,
		watcher:      watcher,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Resolve runs the full pipeline over an architecture document and
// returns the terminal state plus the design JSON. A partial design is
// returned alongside the error when the run fails, so callers can
// inspect what did resolve.
func (a *App) Resolve(ctx context.Context, architecture []byte) (Result, error) {
	var arch model.ArchitectureGraph
	if err := json.Unmarshal(architecture, &arch); err != nil {
		return Result{}, fmt.Errorf("invalid architecture document: %w", err)
	}

	res, runErr := a.orchestrator.Run(ctx, arch)

	design, err := json.Marshal(res.Design)
	if err != nil {
		return Result{}, fmt.Errorf("marshal design: %w", err)
	}
	out := Result{
		RunID:         res.RunID.String(),
		State:         string(res.State),
		SkippedBlocks: res.SkippedBlocks,
		Design:        design,
	}
	return out, runErr
}

// SearchParts finds catalog parts in a category, ranked by score.
// interfaces narrows to parts exposing every listed interface; inStock
// adds a hard availability filter; limit <= 0 returns everything.
func (a *App) SearchParts(ctx context.Context, category string, interfaces []string, inStock bool, limit int) []Part {
	cons := catalog.Constraints{Interfaces: interfaces}
	if inStock {
		avail := model.AvailabilityInStock
		cons.Availability = &avail
	}
	ranked := a.engine.SearchAndRank(ctx, category, cons, search.Preferences{PreferInStock: inStock})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Part, len(ranked))
	for i, sp := range ranked {
		out[i] = toPublicPart(sp.Part)
		out[i].Score = sp.Score
	}
	return out
}

// CatalogSize returns the number of loaded parts.
func (a *App) CatalogSize() int {
	return a.catalog.Len()
}

// PartByID looks up a single catalog part.
func (a *App) PartByID(id string) (Part, bool) {
	p, ok := a.catalog.GetByID(id)
	if !ok {
		return Part{}, false
	}
	return toPublicPart(p), true
}

// CheckCompatibility runs one pairwise check between two catalog parts.
// connectionType is "power" or "interface".
func (a *App) CheckCompatibility(ctx context.Context, partAID, partBID, connectionType string) (Assessment, error) {
	pa, ok := a.catalog.GetByID(partAID)
	if !ok {
		return Assessment{}, fmt.Errorf("unknown part: %s", partAID)
	}
	pb, ok := a.catalog.GetByID(partBID)
	if !ok {
		return Assessment{}, fmt.Errorf("unknown part: %s", partBID)
	}
	ct := model.ConnectionType(connectionType)
	if ct != model.ConnectionPower && ct != model.ConnectionInterface {
		return Assessment{}, fmt.Errorf("unknown connection type: %s", connectionType)
	}
	return toPublicAssessment(a.checker.Check(ctx, pa, pb, ct)), nil
}

// MCPServer exposes the underlying MCP server for custom transports.
func (a *App) MCPServer() *mcpserver.MCPServer {
	return a.mcp.MCPServer()
}

// Run serves the MCP protocol over stdio until ctx is cancelled or
// stdin closes, with the catalog watcher (when enabled) reloading in
// the background.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.watcher != nil {
		g.Go(func() error {
			err := a.watcher.Run(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return err
		})
	}

	g.Go(func() error {
		srv := mcpserver.NewStdioServer(a.mcp.MCPServer())
		if err := srv.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp stdio: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close releases the datasheet store, the database pool and the OTEL
// provider. Safe to call after a cancelled Run().
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("kairo shutting down")
	if a.sheets != nil {
		if err := a.sheets.Close(); err != nil {
			a.logger.Error("datasheet store close error", "error", err)
		}
	}
	if a.pgSource != nil {
		a.pgSource.Close()
	}
	if err := a.otelShutdown(ctx); err != nil {
		a.logger.Error("otel shutdown error", "error", err)
	}
	a.logger.Info("kairo stopped")
	return nil
}

// ── Adapters (defined here because this file imports both sides) ───────────────

// reasonerAdapter wraps a kairo.Reasoner to satisfy compat.Reasoner.
// It converts internal model types to public kairo types at the boundary.
type reasonerAdapter struct {
	r Reasoner
}

func (a *reasonerAdapter) Assess(ctx context.Context, pa, pb model.PartRecord, ct model.ConnectionType) (model.CompatibilityResult, error) {
	res, err := a.r.Assess(ctx, toPublicPart(pa), toPublicPart(pb), string(ct))
	if err != nil {
		return model.CompatibilityResult{}, err
	}
	return model.CompatibilityResult{
		Compatible:      res.Compatible,
		Reasoning:       res.Reasoning,
		Risks:           res.Risks,
		RequiredBuffers: res.RequiredBuffers,
		Warnings:        res.Warnings,
	}, nil
}

// ── Type converters ────────────────────────────────────────────────────────────

// toPublicPart converts an internal model.PartRecord to the public kairo.Part.
// Lives here because this is the only file that imports both sides of the boundary.
func toPublicPart(p model.PartRecord) Part {
	return Part{
		ID:            p.ID,
		MPN:           p.MPN,
		Manufacturer:  p.Manufacturer,
		Category:      p.Category,
		Package:       p.Package,
		SupplyMin:     p.SupplyVoltage.Min,
		SupplyMax:     p.SupplyVoltage.Max,
		SupplyNominal: p.SupplyVoltage.Nominal,
		OutputVoltage: p.OutputVoltage,
		Interfaces:    p.Interfaces,
		Lifecycle:     string(p.Lifecycle),
		Availability:  string(p.Availability),
		CostUSD:       p.UnitCost(),
	}
}

// toPublicAssessment converts an internal compatibility result to the
// public kairo.Assessment.
func toPublicAssessment(r model.CompatibilityResult) Assessment {
	return Assessment{
		Compatible:      r.Compatible,
		Reasoning:       r.Reasoning,
		Risks:           r.Risks,
		RequiredBuffers: r.RequiredBuffers,
		Warnings:        r.Warnings,
	}
}
