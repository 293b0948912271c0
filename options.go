package kairo

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger        *slog.Logger
	version       string
	catalogDir    string
	catalogGlob   string
	databaseURL   string
	datasheetPath string
	workers       int
	bomRevision   string
	reasoner      Reasoner
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and the MCP
// server handshake.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithCatalogDir overrides the catalog directory from config (KAIRO_CATALOG_DIR env var).
func WithCatalogDir(dir string) Option {
	return func(o *resolvedOptions) { o.catalogDir = dir }
}

// WithCatalogGlob overrides the catalog file glob from config (KAIRO_CATALOG_GLOB env var).
func WithCatalogGlob(glob string) Option {
	return func(o *resolvedOptions) { o.catalogGlob = glob }
}

// WithDatabaseURL overrides the Postgres connection string from config
// (DATABASE_URL env var). When set, the catalog loads from the database
// instead of JSON files and the directory watcher is disabled.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithDatasheetPath overrides the SQLite datasheet store path from config
// (KAIRO_DATASHEET_PATH env var).
func WithDatasheetPath(path string) Option {
	return func(o *resolvedOptions) { o.datasheetPath = path }
}

// WithWorkers overrides the resolution worker pool size from config (KAIRO_WORKERS env var).
func WithWorkers(n int) Option {
	return func(o *resolvedOptions) { o.workers = n }
}

// WithBOMRevision overrides the BOM revision tag from config (KAIRO_BOM_REVISION env var).
func WithBOMRevision(rev string) Option {
	return func(o *resolvedOptions) { o.bomRevision = rev }
}

// WithReasoner replaces the HTTP reasoning collaborator with an external
// implementation. Only the last call wins. The rule tier still runs first;
// the reasoner is only consulted for checks the rules cannot decide.
func WithReasoner(r Reasoner) Option {
	return func(o *resolvedOptions) { o.reasoner = r }
}
