package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/source"
)

var sourceTimeout time.Duration

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Verify cited sources",
}

var sourceCheckCmd = &cobra.Command{
	Use:   "check <url>...",
	Short: "Check reachability and authority tier of source URLs",
	Long: `Check each URL with a HEAD request (honouring robots.txt unless disabled in the
config) and classify its publisher as a primary, secondary or tertiary source.

Example:
  veracity source check https://doi.org/10.1038/171737a0 https://en.wikipedia.org/wiki/Water`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), sourceTimeout)
		defer cancel()

		results := source.NewChecker(cfg.Sources, nil).CheckMany(ctx, args)
		for _, r := range results {
			mark := "✓"
			if !r.Reachable {
				mark = "✗"
			}
			fmt.Fprintf(os.Stderr, "%s %s [%s]", mark, r.URL, r.TierName)
			if r.Error != "" {
				fmt.Fprintf(os.Stderr, " %s", r.Error)
			}
			fmt.Fprintln(os.Stderr)
		}
		return printJSON(results)
	},
}

func init() {
	rootCmd.AddCommand(sourceCmd)
	sourceCmd.AddCommand(sourceCheckCmd)
	sourceCheckCmd.Flags().DurationVar(&sourceTimeout, "timeout", 2*time.Minute, "overall timeout")
}
