package dedupe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/apperr"
	"github.com/ppiankov/veracity/internal/embed"
	"github.com/ppiankov/veracity/internal/model"
)

type fakeLister struct {
	inquiries []model.Inquiry
	err       error
}

func (f *fakeLister) ListActiveInquiries(ctx context.Context, scopeID, category string) ([]model.Inquiry, error) {
	return f.inquiries, f.err
}

// slowEmbedder blocks until its context is done or release is closed
type slowEmbedder struct {
	release chan struct{}
}

func (s *slowEmbedder) Name() string { return "slow" }

func (s *slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	<-s.release
	return []float32{1, 0}, nil
}

var testCfg = model.DuplicateConfig{SimilarityThreshold: 0.85, MinJustification: 100, MaxResults: 10}

func existing(t *testing.T, e embed.Embedder, id, title, desc string) model.Inquiry {
	t.Helper()
	vec, err := e.Embed(context.Background(), embed.InquiryText(title, desc))
	require.NoError(t, err)
	return model.Inquiry{ID: id, Title: title, Description: desc, Embedding: vec, Status: model.InquiryActive}
}

func TestFindDuplicates_IdenticalText(t *testing.T) {
	e := embed.NewHashingEmbedder(256)
	lister := &fakeLister{inquiries: []model.Inquiry{
		existing(t, e, "q-other", "Who painted the ceiling", "Sistine chapel attribution"),
		existing(t, e, "q-same", "Does water boil at 100C", "At sea level pressure"),
	}}
	d := NewDetector(e, lister, testCfg, time.Second, nil)

	report, err := d.FindDuplicates(context.Background(), "Does water boil at 100C", "At sea level pressure", "g1", "default")
	require.NoError(t, err)
	assert.False(t, report.Degraded)
	require.NotEmpty(t, report.Matches)
	assert.Equal(t, "q-same", report.Matches[0].ExistingID)
	assert.InDelta(t, 1.0, report.Matches[0].Similarity, 1e-6)
	assert.Len(t, report.Blocking(), 1)
	assert.NotEmpty(t, report.Embedding)

	for i := 1; i < len(report.Matches); i++ {
		assert.GreaterOrEqual(t, report.Matches[i-1].Similarity, report.Matches[i].Similarity)
	}
}

func TestFindDuplicates_TimeoutDegrades(t *testing.T) {
	slow := &slowEmbedder{release: make(chan struct{})}
	defer close(slow.release)
	d := NewDetector(slow, &fakeLister{}, testCfg, 20*time.Millisecond, nil)

	start := time.Now()
	report, err := d.FindDuplicates(context.Background(), "t", "d", "g1", "default")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, report.Degraded)
	assert.Empty(t, report.Matches)
	assert.Contains(t, report.Reason, "dependency_timeout")
}

func TestFindDuplicates_ListerError(t *testing.T) {
	d := NewDetector(embed.NewHashingEmbedder(64), &fakeLister{err: errors.New("db down")}, testCfg, time.Second, nil)
	_, err := d.FindDuplicates(context.Background(), "t", "d", "g1", "default")
	assert.Error(t, err)
}

func TestFindDuplicates_MaxResults(t *testing.T) {
	e := embed.NewHashingEmbedder(64)
	var qs []model.Inquiry
	for i := 0; i < 5; i++ {
		qs = append(qs, existing(t, e, string(rune('a'+i)), "same words here", "and here"))
	}
	cfg := testCfg
	cfg.MaxResults = 3
	d := NewDetector(e, &fakeLister{inquiries: qs}, cfg, time.Second, nil)

	report, err := d.FindDuplicates(context.Background(), "same words here", "and here", "g1", "default")
	require.NoError(t, err)
	assert.Len(t, report.Matches, 3)
}

func TestCheckJustification(t *testing.T) {
	err := CheckJustification("op", strings.Repeat("x", 99), 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	assert.NoError(t, CheckJustification("op", strings.Repeat("x", 100), 100))
	// characters, not bytes
	assert.NoError(t, CheckJustification("op", strings.Repeat("é", 100), 100))
	assert.Error(t, CheckJustification("op", strings.Repeat("é", 99), 100))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}
