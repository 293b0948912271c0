package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	searchInterfaces string
	searchInStock    bool
	searchLimit      int
)

var searchCmd = &cobra.Command{
	Use:   "search <category>",
	Short: "Search the part catalog, ranked by score",
	Long: `Search finds catalog parts in a category and ranks them the way the
pipeline would: lifecycle, availability, cost bracket, integration and
documentation all feed the score. Category matching is hierarchical —
"regulator" matches "regulator_ldo" and "regulator_buck".

Examples:
  kairo search sensor --interfaces i2c --in-stock
  kairo search regulator_buck --limit 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&searchInterfaces, "interfaces", "i", "",
		"comma-separated interfaces the part must expose (e.g. i2c,spi)")
	searchCmd.Flags().BoolVar(&searchInStock, "in-stock", false,
		"only in-stock parts")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10,
		"maximum results (0 for all)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	var ifaces []string
	for _, s := range strings.Split(searchInterfaces, ",") {
		if s = strings.TrimSpace(s); s != "" {
			ifaces = append(ifaces, s)
		}
	}

	parts := app.SearchParts(cmd.Context(), args[0], ifaces, searchInStock, searchLimit)
	if len(parts) == 0 {
		fmt.Fprintln(os.Stderr, "no matching parts")
		return nil
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(parts)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMPN\tCATEGORY\tSCORE\tLIFECYCLE\tSTOCK\tCOST")
	for _, p := range parts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%s\t%s\t$%.2f\n",
			p.ID, p.MPN, p.Category, p.Score, p.Lifecycle, p.Availability, p.CostUSD)
	}
	return w.Flush()
}
