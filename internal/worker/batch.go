package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/veracity/internal/score"
)

// Recalculator recomputes and persists one claim's credibility
type Recalculator interface {
	RecalculateClaim(ctx context.Context, claimID string) (score.CredibilityResult, error)
}

// RecalcJob represents one claim recalculation
type RecalcJob struct {
	Index        int
	ClaimID      string
	Recalculator Recalculator
}

// Execute executes the recalculation job
func (j *RecalcJob) Execute(ctx context.Context) Result {
	result, err := j.Recalculator.RecalculateClaim(ctx, j.ClaimID)
	return &RecalcResult{
		index:   j.Index,
		ClaimID: j.ClaimID,
		Result:  result,
		Error:   err,
	}
}

// RecalcResult represents the result of a recalculation job
type RecalcResult struct {
	index   int
	ClaimID string
	Result  score.CredibilityResult
	Error   error
}

// GetError returns the error from the recalculation
func (r *RecalcResult) GetError() error {
	return r.Error
}

// BatchProcessor recalculates many claims concurrently
type BatchProcessor struct {
	recalculator Recalculator
	concurrency  int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(recalculator Recalculator, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		recalculator: recalculator,
		concurrency:  concurrency,
	}
}

// ProcessClaims recalculates the given claims and returns results in input order.
// Duplicate ids are recalculated once.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claimIDs []string) []*RecalcResult {
	ids := dedupe(claimIDs)
	if len(ids) == 0 {
		return []*RecalcResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	out := make([]*RecalcResult, len(ids))
	for i, id := range ids {
		if !pool.Submit(&RecalcJob{Index: i, ClaimID: id, Recalculator: b.recalculator}) {
			break
		}
	}

	for _, r := range pool.Wait() {
		rr := r.(*RecalcResult)
		out[rr.index] = rr
	}

	// Jobs that never ran because ctx was cancelled
	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &RecalcResult{index: i, ClaimID: ids[i], Error: err}
		}
	}
	return out
}

// ProcessFile reads claim ids from a file and recalculates them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*RecalcResult, error) {
	ids, err := ReadIDsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}

	return b.ProcessClaims(ctx, ids), nil
}

// ReadIDsFromFile reads ids from a file (one per line, # comments allowed)
func ReadIDsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return dedupe(ids), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
