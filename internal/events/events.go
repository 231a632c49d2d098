// Package events publishes engine notifications for downstream subscribers.
// Delivery is best-effort: publishers never block engine operations.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names an event
type Type string

const (
	ScoreRecalculated  Type = "score_recalculated"
	PositionClassified Type = "position_classified"
	GraphPromoted      Type = "graph_promoted"
	AmendmentApplied   Type = "amendment_applied"
	ChallengeResolved  Type = "challenge_resolved"
	CuratorDecided     Type = "curator_decided"
)

// Event is the envelope published on the bus
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	SubjectID string    `json:"subject_id"`
	Actor     string    `json:"actor,omitempty"`
	At        time.Time `json:"at"`
	Payload   any       `json:"payload,omitempty"`
}

// New builds an event with a fresh id
func New(t Type, subjectID, actor string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		SubjectID: subjectID,
		Actor:     actor,
		At:        time.Now().UTC(),
		Payload:   payload,
	}
}

// ScorePayload accompanies ScoreRecalculated
type ScorePayload struct {
	ClaimID    string  `json:"claim_id"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Previous   float64 `json:"previous"`
}

// PositionPayload accompanies PositionClassified
type PositionPayload struct {
	PositionID string  `json:"position_id"`
	InquiryID  string  `json:"inquiry_id"`
	Status     string  `json:"status"`
	Score      float64 `json:"score"`
}

// PromotionPayload accompanies GraphPromoted
type PromotionPayload struct {
	GraphID string  `json:"graph_id"`
	EventID string  `json:"event_id"`
	Overall float64 `json:"overall"`
}

// AmendmentPayload accompanies AmendmentApplied
type AmendmentPayload struct {
	AmendmentID string `json:"amendment_id"`
	ClaimID     string `json:"claim_id"`
	Path        string `json:"path"`
	Trigger     string `json:"trigger"`
}

// DecisionPayload accompanies ChallengeResolved and CuratorDecided
type DecisionPayload struct {
	Status        string  `json:"status"`
	WeightedScore float64 `json:"weighted_score"`
	Votes         int     `json:"votes"`
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the event
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns recorded events of one type
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
