package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/veracity/internal/score"
)

// mockRecalculator implements Recalculator
type mockRecalculator struct {
	fail  map[string]bool
	calls int32
}

func (m *mockRecalculator) RecalculateClaim(ctx context.Context, claimID string) (score.CredibilityResult, error) {
	atomic.AddInt32(&m.calls, 1)
	time.Sleep(5 * time.Millisecond) // Simulate work
	if m.fail[claimID] {
		return score.CredibilityResult{}, errors.New("recalc error")
	}
	return score.CredibilityResult{Score: 0.5, EvidenceCount: len(claimID)}, nil
}

func TestBatchProcessor_ProcessClaims_InputOrder(t *testing.T) {
	recalc := &mockRecalculator{}
	processor := NewBatchProcessor(recalc, 3)

	ids := []string{"c1", "c22", "c333", "c4444", "c55555"}
	results := processor.ProcessClaims(context.Background(), ids)

	if len(results) != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), len(results))
	}
	for i, res := range results {
		if res.ClaimID != ids[i] {
			t.Errorf("result %d is for %s, want %s", i, res.ClaimID, ids[i])
		}
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.ClaimID, res.Error)
		}
		if res.Result.EvidenceCount != len(ids[i]) {
			t.Errorf("result %d carries the wrong score", i)
		}
	}
}

func TestBatchProcessor_ProcessClaims_Errors(t *testing.T) {
	recalc := &mockRecalculator{fail: map[string]bool{"bad": true}}
	results := NewBatchProcessor(recalc, 2).ProcessClaims(context.Background(), []string{"good", "bad"})

	if results[0].GetError() != nil {
		t.Errorf("good claim failed: %v", results[0].Error)
	}
	if results[1].GetError() == nil {
		t.Error("expected error for bad claim")
	}
}

func TestBatchProcessor_ProcessClaims_Dedupes(t *testing.T) {
	recalc := &mockRecalculator{}
	results := NewBatchProcessor(recalc, 2).ProcessClaims(context.Background(), []string{"a", "b", "a", "", "b"})

	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
	if atomic.LoadInt32(&recalc.calls) != 2 {
		t.Errorf("expected 2 recalculations, got %d", recalc.calls)
	}
}

func TestBatchProcessor_ProcessClaims_Empty(t *testing.T) {
	results := NewBatchProcessor(&mockRecalculator{}, 2).ProcessClaims(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessClaims_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewBatchProcessor(&mockRecalculator{}, 2).ProcessClaims(ctx, []string{"a", "b", "c"})
	if len(results) != 3 {
		t.Fatalf("expected a result per id, got %d", len(results))
	}
	for _, r := range results {
		if !errors.Is(r.Error, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", r.ClaimID, r.Error)
		}
	}
}

func TestReadIDsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	content := `# claims to recalculate
claim-1

claim-2
  claim-3  
claim-1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	ids, err := ReadIDsFromFile(path)
	if err != nil {
		t.Fatalf("ReadIDsFromFile failed: %v", err)
	}

	expected := []string{"claim-1", "claim-2", "claim-3"}
	if len(ids) != len(expected) {
		t.Fatalf("expected %d ids, got %d: %v", len(expected), len(ids), ids)
	}
	for i, id := range expected {
		if ids[i] != id {
			t.Errorf("expected id %d to be %s, got %s", i, id, ids[i])
		}
	}
}

func TestReadIDsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadIDsFromFile("/nonexistent/ids.txt"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	if err := os.WriteFile(path, []byte("a\nb\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	results, err := NewBatchProcessor(&mockRecalculator{}, 2).ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}
