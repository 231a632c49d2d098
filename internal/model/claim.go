package model

import (
	"encoding/json"
	"time"
)

// Level is the mutability tier of a claim graph
type Level int

const (
	LevelImmutable Level = 0 // Verified, frozen; no further edits or evidence
	LevelMutable   Level = 1 // Open to evidence, votes and amendments
)

func (l Level) String() string {
	switch l {
	case LevelImmutable:
		return "level-0"
	case LevelMutable:
		return "level-1"
	default:
		return "unknown"
	}
}

// ClaimKind distinguishes graph nodes from graph edges
type ClaimKind string

const (
	ClaimKindNode ClaimKind = "node"
	ClaimKindEdge ClaimKind = "edge"
)

// Claim is a node or an edge of the shared knowledge graph whose truth is being assessed
type Claim struct {
	ID             string                     `json:"id"`
	GraphID        string                     `json:"graph_id"`
	Kind           ClaimKind                  `json:"kind"`
	Title          string                     `json:"title"`
	Description    string                     `json:"description,omitempty"`
	Properties     map[string]json.RawMessage `json:"properties,omitempty"`
	Level          Level                      `json:"level"`
	Credibility    float64                    `json:"credibility"`
	RecalculatedAt *time.Time                 `json:"recalculated_at,omitempty"`
	Version        int64                      `json:"version"`
	CreatedBy      string                     `json:"created_by"`
	CreatedAt      time.Time                  `json:"created_at"`
}

// IsImmutable reports whether the claim reached the verified tier
func (c Claim) IsImmutable() bool {
	return c.Level == LevelImmutable
}

// Graph groups claims that are promoted together
type Graph struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Level     Level     `json:"level"`
	Version   int64     `json:"version"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// IsImmutable reports whether the graph has been promoted
func (g Graph) IsImmutable() bool {
	return g.Level == LevelImmutable
}
