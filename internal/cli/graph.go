package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/identity"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Promotion eligibility and promotion of claim graphs",
}

var graphEligibilityCmd = &cobra.Command{
	Use:   "eligibility <graph-id>",
	Short: "Show a graph's promotion eligibility without changing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		el, err := a.engine.EvaluatePromotion(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Graph %s: overall %.2f (threshold %.2f), eligible: %v\n",
			el.GraphID, el.Overall, el.Threshold, el.IsEligible)
		for _, m := range el.Missing {
			fmt.Fprintf(os.Stderr, "  missing: %s\n", m)
		}
		return printJSON(el)
	},
}

var graphPromoteCmd = &cobra.Command{
	Use:   "promote <graph-id>",
	Short: "Promote an eligible graph to the verified (immutable) tier",
	Long: `Request promotion of a claim graph. The graph is promoted only if it is
eligible; promotion is irreversible.

Example:
  veracity graph promote 42ab... --actor curator-7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		who, err := requireActor()
		if err != nil {
			return err
		}
		stop := serveMetrics(metricsAddr)
		defer stop()

		ctx := identity.WithActor(context.Background(), who)
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		out, err := a.engine.RequestPromotionEvaluation(ctx, args[0])
		if err != nil {
			return err
		}
		if out.Promoted() {
			fmt.Fprintf(os.Stderr, "✓ Graph %s promoted (event %s)\n", args[0], out.Event.ID)
		} else {
			fmt.Fprintf(os.Stderr, "✗ Graph %s is not eligible (overall %.2f)\n", args[0], out.Eligibility.Overall)
			for _, m := range out.Eligibility.Missing {
				fmt.Fprintf(os.Stderr, "  missing: %s\n", m)
			}
		}
		return printJSON(out)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.AddCommand(graphEligibilityCmd)
	graphCmd.AddCommand(graphPromoteCmd)
	graphPromoteCmd.Flags().StringVar(&actorID, "actor", "", "user id recorded as the requester")
}
