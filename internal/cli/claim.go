package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/engine"
	"github.com/ppiankov/veracity/internal/identity"
	"github.com/ppiankov/veracity/internal/model"
)

var (
	recalcNow bool

	evidenceType       string
	evidenceWeight     float64
	evidenceConfidence float64
	evidenceSource     string
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Inspect claims",
}

var claimScoreCmd = &cobra.Command{
	Use:   "score <claim-id>",
	Short: "Show a claim's credibility and the signals behind it",
	Long: `Show the credibility of a claim as JSON, with its explaining signals on stderr.

Example:
  veracity claim score 6f1c...
  veracity claim score 6f1c... --recalc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		get := a.engine.ClaimScore
		if recalcNow {
			get = a.engine.RecalculateClaim
		}
		result, err := get(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Claim %s: score %.2f, confidence %.2f\n", args[0], result.Score, result.Confidence)
		printSignals(result.Signals)
		return printJSON(result)
	},
}

var claimEvidenceCmd = &cobra.Command{
	Use:   "evidence <claim-id>",
	Short: "Submit evidence for a claim and show its new credibility",
	Long: `Append an evidence item to a claim's ledger. When sources.check_on_submit is set,
a cited http(s) source is checked and the result is stored with the item.

Example:
  veracity claim evidence 6f1c... --actor bob --type supporting --confidence 0.9 \
    --source https://doi.org/10.1038/171737a0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		who, err := requireActor()
		if err != nil {
			return err
		}
		ctx := identity.WithActor(context.Background(), who)
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.engine.SubmitEvidence(ctx, engine.EvidenceInput{
			TargetKind: model.TargetClaim,
			TargetID:   args[0],
			Type:       model.EvidenceType(evidenceType),
			Weight:     evidenceWeight,
			Confidence: evidenceConfidence,
			Source:     evidenceSource,
		})
		if err != nil {
			return err
		}
		if sc, ok := res.Evidence.Evaluation.(model.SourceCheck); ok {
			fmt.Fprintf(os.Stderr, "Source %s: reachable %v, primary %v\n", sc.SourceURL, sc.Reachable, sc.Primary)
		}
		if res.Credibility != nil {
			fmt.Fprintf(os.Stderr, "Claim %s: score %.2f, confidence %.2f\n", args[0], res.Credibility.Score, res.Credibility.Confidence)
		}
		return printJSON(res)
	},
}

func init() {
	rootCmd.AddCommand(claimCmd)
	claimCmd.AddCommand(claimScoreCmd)
	claimCmd.AddCommand(claimEvidenceCmd)
	claimScoreCmd.Flags().BoolVar(&recalcNow, "recalc", false, "recompute instead of reading the cache")

	f := claimEvidenceCmd.Flags()
	f.StringVar(&actorID, "actor", "", "user id recorded as the submitter")
	f.StringVar(&evidenceType, "type", string(model.EvidenceSupporting), "supporting, refuting, neutral or clarifying")
	f.Float64Var(&evidenceWeight, "weight", 1, "relative weight (>= 0)")
	f.Float64Var(&evidenceConfidence, "confidence", 0.5, "submitter confidence in [0,1]")
	f.StringVar(&evidenceSource, "source", "", "citation or URL")
}
