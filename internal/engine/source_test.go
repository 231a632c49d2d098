package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/source"
	"github.com/ppiankov/veracity/internal/store"
)

func TestSubmitEvidence_ChecksCitedSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "sources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := model.DefaultConfig()
	cfg.Sources.RespectRobots = false
	cfg.Sources.DomainMap = map[string]string{"127.0.0.1": "primary"}
	eng, err := New(cfg, Options{
		Store:   s,
		Sources: source.NewChecker(cfg.Sources, nil),
		Clock:   func() time.Time { return t0 },
	})
	require.NoError(t, err)

	require.NoError(t, s.CreateGraph(ctx, model.Graph{ID: "g1", Title: "Water", Category: model.DefaultCategory, CreatedBy: "alice", CreatedAt: t0}))
	require.NoError(t, s.CreateClaim(ctx, model.Claim{ID: "c1", GraphID: "g1", Kind: model.ClaimKindNode, Title: "Boiling point", CreatedBy: "alice", CreatedAt: t0}))

	submit := func(src string, eval model.EvidenceEvaluation) model.EvidenceItem {
		res, err := eng.SubmitEvidence(as("bob"), EvidenceInput{
			TargetKind: model.TargetClaim, TargetID: "c1", Type: model.EvidenceSupporting,
			Weight: 1, Confidence: 0.9, Source: src, Evaluation: eval,
		})
		require.NoError(t, err)
		return res.Evidence
	}

	live := submit(server.URL+"/paper", nil)
	assert.Equal(t, model.SourceCheck{SourceURL: server.URL + "/paper", Reachable: true, Primary: true}, live.Evaluation)

	dead := submit(server.URL+"/gone", nil)
	assert.Equal(t, model.SourceCheck{SourceURL: server.URL + "/gone", Reachable: false, Primary: true}, dead.Evaluation)

	// Caller-supplied evaluations and non-URL sources are left alone.
	review := model.ExpertReview{ReviewerID: "dr-who", Rating: 0.9}
	assert.Equal(t, review, submit(server.URL+"/paper", review).Evaluation)
	assert.Nil(t, submit("Handbook of Chemistry, p. 42", nil).Evaluation)

	stored, err := s.ListEvidence(ctx, model.TargetClaim, "c1")
	require.NoError(t, err)
	require.Len(t, stored, 4)
	for _, e := range stored {
		if e.ID == live.ID {
			assert.Equal(t, live.Evaluation, e.Evaluation)
		}
	}
}
