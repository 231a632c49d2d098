package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/worker"
)

var (
	recalcAll     bool
	recalcFile    string
	recalcTimeout time.Duration
	concurrency   int
)

// recalcCmd represents the recalc command
var recalcCmd = &cobra.Command{
	Use:   "recalc [claim-id...]",
	Short: "Recalculate claim credibility in parallel",
	Long: `Recalculate and persist the credibility of many claims concurrently:
- Claim ids from arguments, from a file (one per line), or every mutable claim
- Work spread over a bounded worker pool
- Verified (level 0) claims keep their pinned score

Example:
  veracity recalc c1 c2 c3
  veracity recalc --all --concurrency 8
  veracity recalc --file claims.txt --metrics-addr :9090`,
	RunE: runRecalc,
}

func init() {
	rootCmd.AddCommand(recalcCmd)

	recalcCmd.Flags().BoolVar(&recalcAll, "all", false, "recalculate every mutable claim")
	recalcCmd.Flags().StringVar(&recalcFile, "file", "", "read claim ids from a file")
	recalcCmd.Flags().DurationVar(&recalcTimeout, "timeout", 10*time.Minute, "total timeout for the batch")
	recalcCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
}

func runRecalc(cmd *cobra.Command, args []string) error {
	if !recalcAll && recalcFile == "" && len(args) == 0 {
		return errors.New("give claim ids, --file or --all")
	}

	ctx, cancel := context.WithTimeout(context.Background(), recalcTimeout)
	defer cancel()

	stop := serveMetrics(metricsAddr)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	workers := a.cfg.Concurrency.Workers
	if concurrency > 0 {
		workers = concurrency
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Veracity Recalculation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", recalcTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(a.engine, workers)

	var results []*worker.RecalcResult
	switch {
	case recalcFile != "":
		results, err = processor.ProcessFile(ctx, recalcFile)
	case recalcAll:
		var ids []string
		if ids, err = a.store.ListMutableClaimIDs(ctx); err == nil {
			results = processor.ProcessClaims(ctx, ids)
		}
	default:
		results = processor.ProcessClaims(ctx, args)
	}
	if err != nil {
		return fmt.Errorf("recalculate: %w", err)
	}

	successCount := 0
	failureCount := 0
	for _, r := range results {
		if r.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.ClaimID, r.Error)
			continue
		}
		successCount++
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ %s (score %.2f, confidence %.2f)\n", r.ClaimID, r.Result.Score, r.Result.Confidence)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d claims\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d recalculations failed", failureCount, len(results))
	}
	return nil
}
