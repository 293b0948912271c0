package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kairo-ai/kairo"
)

var (
	resolveOut      string
	resolveRevision string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <architecture-file>",
	Short: "Resolve an architecture document into a concrete design",
	Long: `Resolve runs the full pipeline over an architecture JSON document:
anchor selection, per-block part resolution, compatibility checking,
intermediary insertion, datasheet enrichment, netlist and BOM generation.

The design document is written to stdout (or --out). A run that skips
blocks still succeeds; only a run that resolves nothing fails.

Examples:
  kairo resolve architecture.json
  kairo resolve architecture.json --out design.json --revision B`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVarP(&resolveOut, "out", "o", "",
		"write the design document to a file instead of stdout")
	resolveCmd.Flags().StringVar(&resolveRevision, "revision", "",
		"BOM revision tag (overrides KAIRO_BOM_REVISION)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	doc, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read architecture: %w", err)
	}

	var opts []kairo.Option
	if resolveRevision != "" {
		opts = append(opts, kairo.WithBOMRevision(resolveRevision))
	}
	app, err := newApp(opts...)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	result, runErr := app.Resolve(cmd.Context(), doc)
	if runErr != nil && result.Design == nil {
		return runErr
	}

	out := os.Stdout
	if resolveOut != "" {
		f, err := os.Create(resolveOut)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var pretty json.RawMessage = result.Design
	if buf, err := indent(result.Design); err == nil {
		pretty = buf
	}
	fmt.Fprintln(out, string(pretty))

	fmt.Fprintf(os.Stderr, "run %s: %s\n", result.RunID, result.State)
	for _, b := range result.SkippedBlocks {
		fmt.Fprintf(os.Stderr, "  skipped: %s\n", b)
	}
	return runErr
}

func indent(raw json.RawMessage) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}
