package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kairo-ai/kairo"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	// Global flags
	verbose    bool
	catalogDir string
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "kairo",
	Short: "Hardware design resolution pipeline",
	Long: `Kairo resolves an abstract hardware architecture into a concrete design:
it selects real parts from a catalog, checks pairwise compatibility, inserts
regulators and level shifters where voltages disagree, and emits a netlist
and a BOM.

Examples:
  kairo resolve architecture.json                    # Resolve a design
  kairo search sensor --interfaces i2c --in-stock    # Search the catalog
  kairo check esp32-s3 bme280 --type power           # Check two parts
  kairo validate                                     # Validate catalog files`,
	Version: version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&catalogDir, "catalog", "", "catalog directory (overrides KAIRO_CATALOG_DIR)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "machine-readable JSON output")
}

// newApp assembles the pipeline from env config plus global flags.
// Logs go to stderr so stdout stays clean for command output.
func newApp(extra ...kairo.Option) (*kairo.App, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []kairo.Option{
		kairo.WithLogger(logger),
		kairo.WithVersion(version),
	}
	if catalogDir != "" {
		opts = append(opts, kairo.WithCatalogDir(catalogDir))
	}
	opts = append(opts, extra...)
	return kairo.New(opts...)
}
