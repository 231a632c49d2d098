package score

import (
	"testing"

	"github.com/ppiankov/veracity/internal/model"
)

func TestReputation_Components(t *testing.T) {
	stats := model.ReputationStats{
		UserID:                 "u1",
		EvidenceSubmitted:      10,
		EvidenceVerified:       6,
		EvidenceRejected:       2,
		AverageConfidence:      0.8,
		VotesCast:              5,
		VotesDecided:           4,
		VotesAligned:           3,
		MethodologyCompletions: 1,
		ChallengesRaised:       4,
		ChallengesResolved:     2,
	}

	rep := newTestScorer().Reputation(stats)

	// EQ = 6/8 * 0.8 = 0.6, VA = 0.75, MB = 0.2, CR = 0.5
	if !approx(rep.EvidenceQuality, 0.6) {
		t.Errorf("EvidenceQuality = %v, want 0.6", rep.EvidenceQuality)
	}
	if !approx(rep.VoteAlignment, 0.75) {
		t.Errorf("VoteAlignment = %v, want 0.75", rep.VoteAlignment)
	}
	if rep.MethodologyBonus != 0.2 {
		t.Errorf("MethodologyBonus = %v, want 0.2", rep.MethodologyBonus)
	}
	if !approx(rep.ChallengeResolution, 0.5) {
		t.Errorf("ChallengeResolution = %v, want 0.5", rep.ChallengeResolution)
	}
	want := 0.4*0.6 + 0.3*0.75 + 0.2 + 0.1*0.5
	if !approx(rep.Score, want) {
		t.Errorf("Score = %v, want %v", rep.Score, want)
	}
	if rep.UserID != "u1" || len(rep.Signals) != 4 {
		t.Errorf("unexpected breakdown: %+v", rep)
	}
}

func TestReputation_NewUserIsZero(t *testing.T) {
	rep := newTestScorer().Reputation(model.ReputationStats{UserID: "new"})
	if rep.Score != 0 {
		t.Errorf("Score = %v, want 0 for a user with no history", rep.Score)
	}
}

func TestReputation_PerfectRecordIsBounded(t *testing.T) {
	rep := newTestScorer().Reputation(model.ReputationStats{
		EvidenceVerified:       3,
		AverageConfidence:      1,
		VotesDecided:           3,
		VotesAligned:           3,
		MethodologyCompletions: 2,
		ChallengesRaised:       1,
		ChallengesResolved:     1,
	})
	if !approx(rep.Score, 1.0) {
		t.Errorf("Score = %v, want 1.0", rep.Score)
	}
}

func TestVerdict_DerivedFromTargetClaim(t *testing.T) {
	scorer := newTestScorer()
	supporting := model.EvidenceItem{Type: model.EvidenceSupporting}
	refuting := model.EvidenceItem{Type: model.EvidenceRefuting}
	neutral := model.EvidenceItem{Type: model.EvidenceNeutral}

	tests := []struct {
		name string
		in   AttributedEvidence
		want EvidenceVerdict
	}{
		{"supporting credible", AttributedEvidence{Item: supporting, ClaimCredibility: 0.75}, VerdictVerified},
		{"supporting immutable", AttributedEvidence{Item: supporting, ClaimCredibility: 0.1, ClaimImmutable: true}, VerdictVerified},
		{"supporting discredited", AttributedEvidence{Item: supporting, ClaimCredibility: 0.3}, VerdictRejected},
		{"supporting undecided", AttributedEvidence{Item: supporting, ClaimCredibility: 0.5}, VerdictUndecided},
		{"refuting discredited", AttributedEvidence{Item: refuting, ClaimCredibility: 0.2}, VerdictVerified},
		{"refuting credible", AttributedEvidence{Item: refuting, ClaimCredibility: 0.9}, VerdictRejected},
		{"neutral never decided", AttributedEvidence{Item: neutral, ClaimCredibility: 0.9}, VerdictUndecided},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scorer.Verdict(tt.in); got != tt.want {
				t.Errorf("Verdict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvidenceStats(t *testing.T) {
	scorer := newTestScorer()
	items := []AttributedEvidence{
		{Item: model.EvidenceItem{Type: model.EvidenceSupporting, Confidence: 0.9}, ClaimCredibility: 0.8},
		{Item: model.EvidenceItem{Type: model.EvidenceSupporting, Confidence: 0.5}, ClaimCredibility: 0.1},
		{Item: model.EvidenceItem{Type: model.EvidenceRefuting, Confidence: 0.7}, ClaimCredibility: 0.5},
	}

	stats := scorer.EvidenceStats(model.ReputationStats{UserID: "u1", VotesCast: 2}, items)

	if stats.EvidenceSubmitted != 3 || stats.EvidenceVerified != 1 || stats.EvidenceRejected != 1 {
		t.Errorf("counters = %+v", stats)
	}
	if !approx(stats.AverageConfidence, 0.7) {
		t.Errorf("AverageConfidence = %v, want 0.7", stats.AverageConfidence)
	}
	if stats.VotesCast != 2 {
		t.Error("non-evidence counters must be preserved")
	}
}
