package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkType string

var checkCmd = &cobra.Command{
	Use:   "check <part-a> <part-b>",
	Short: "Check pairwise compatibility between two catalog parts",
	Long: `Check runs one pairwise compatibility check. Power checks verify that
part A's source voltage lands inside part B's supply window and that A
can supply B's draw; interface checks look for shared buses and matching
logic levels.

Examples:
  kairo check esp32-s3 bme280 --type power
  kairo check esp32-s3 ssd1306 --type interface --json`,
	Args: cobra.ExactArgs(2),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkType, "type", "t", "interface",
		`connection type: "power" or "interface"`)
}

func runCheck(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	res, err := app.CheckCompatibility(cmd.Context(), args[0], args[1], checkType)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	verdict := "COMPATIBLE"
	if !res.Compatible {
		verdict = "INCOMPATIBLE"
	}
	fmt.Printf("%s: %s <-> %s (%s)\n", verdict, args[0], args[1], checkType)
	if res.Reasoning != "" {
		fmt.Printf("  reasoning: %s\n", res.Reasoning)
	}
	for _, r := range res.Risks {
		fmt.Printf("  risk: %s\n", r)
	}
	for _, b := range res.RequiredBuffers {
		fmt.Printf("  required: %s\n", b)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}
