package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AmendmentStatus is the state of an amendment; applied and rejected are terminal
type AmendmentStatus string

const (
	AmendmentProposed AmendmentStatus = "proposed"
	AmendmentApplied  AmendmentStatus = "applied"
	AmendmentRejected AmendmentStatus = "rejected"
)

// AmendmentTrigger records which entry point created the amendment
type AmendmentTrigger string

const (
	TriggerManual    AmendmentTrigger = "manual"
	TriggerAutomatic AmendmentTrigger = "automatic"
)

// Amendment is a proposed field-level change to a claim
type Amendment struct {
	ID              string           `json:"id"`
	ClaimID         string           `json:"claim_id"`
	InquiryID       string           `json:"inquiry_id,omitempty"`
	PositionID      string           `json:"position_id,omitempty"`
	Change          AmendmentChange  `json:"-"`
	Explanation     string           `json:"explanation"`
	Status          AmendmentStatus  `json:"status"`
	Trigger         AmendmentTrigger `json:"trigger"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	ProposedBy      string           `json:"proposed_by"`
	CreatedAt       time.Time        `json:"created_at"`
	DecidedAt       *time.Time       `json:"decided_at,omitempty"`
}

// ClaimField names the scalar claim fields an amendment may rewrite
type ClaimField string

const (
	FieldTitle       ClaimField = "title"
	FieldDescription ClaimField = "description"
)

// ErrIncumbentMismatch is returned when the claim no longer holds the value the change was proposed against
var ErrIncumbentMismatch = errors.New("incumbent value changed since the amendment was proposed")

// AmendmentChange is the field-level edit carried by an amendment.
// Concrete variants: TextChange, PropertyChange, PropertyRemoval.
type AmendmentChange interface {
	ChangeKind() string
	// Path is the field path the change targets (e.g. "title" or "properties.population")
	Path() string
	isAmendmentChange()
}

// TextChange rewrites a scalar text field of the claim
type TextChange struct {
	Field ClaimField `json:"field"`
	From  string     `json:"from"`
	To    string     `json:"to"`
}

// PropertyChange sets a key in the claim's property bag. From is nil when the key was absent.
type PropertyChange struct {
	Key  string          `json:"key"`
	From json.RawMessage `json:"from,omitempty"`
	To   json.RawMessage `json:"to"`
}

// PropertyRemoval deletes a key from the claim's property bag
type PropertyRemoval struct {
	Key  string          `json:"key"`
	From json.RawMessage `json:"from"`
}

func (TextChange) ChangeKind() string      { return "text" }
func (PropertyChange) ChangeKind() string  { return "property_set" }
func (PropertyRemoval) ChangeKind() string { return "property_remove" }

func (c TextChange) Path() string      { return string(c.Field) }
func (c PropertyChange) Path() string  { return "properties." + c.Key }
func (c PropertyRemoval) Path() string { return "properties." + c.Key }

func (TextChange) isAmendmentChange()      {}
func (PropertyChange) isAmendmentChange()  {}
func (PropertyRemoval) isAmendmentChange() {}

// ValidateChange checks the structural validity of a change
func ValidateChange(change AmendmentChange) error {
	switch c := change.(type) {
	case nil:
		return errors.New("change is required")
	case TextChange:
		if c.Field != FieldTitle && c.Field != FieldDescription {
			return fmt.Errorf("unknown claim field %q", c.Field)
		}
		if c.Field == FieldTitle && strings.TrimSpace(c.To) == "" {
			return errors.New("title cannot be blank")
		}
	case PropertyChange:
		if strings.TrimSpace(c.Key) == "" {
			return errors.New("property key is required")
		}
		if !json.Valid(c.To) {
			return fmt.Errorf("property %q: new value is not valid JSON", c.Key)
		}
	case PropertyRemoval:
		if strings.TrimSpace(c.Key) == "" {
			return errors.New("property key is required")
		}
	default:
		return fmt.Errorf("unsupported change kind %q", change.ChangeKind())
	}
	return nil
}

// CaptureIncumbent returns the change with its From value read from the claim
func CaptureIncumbent(claim Claim, change AmendmentChange) AmendmentChange {
	switch c := change.(type) {
	case TextChange:
		if c.Field == FieldTitle {
			c.From = claim.Title
		} else {
			c.From = claim.Description
		}
		return c
	case PropertyChange:
		c.From = cloneRaw(claim.Properties[c.Key])
		return c
	case PropertyRemoval:
		c.From = cloneRaw(claim.Properties[c.Key])
		return c
	}
	return change
}

// ApplyChange returns a copy of the claim with the change applied.
// It fails with ErrIncumbentMismatch when the claim no longer holds the captured From value.
func ApplyChange(claim Claim, change AmendmentChange) (Claim, error) {
	out := claim
	out.Properties = make(map[string]json.RawMessage, len(claim.Properties))
	for k, v := range claim.Properties {
		out.Properties[k] = v
	}

	switch c := change.(type) {
	case TextChange:
		current := claim.Title
		if c.Field == FieldDescription {
			current = claim.Description
		}
		if current != c.From {
			return Claim{}, ErrIncumbentMismatch
		}
		if c.Field == FieldTitle {
			out.Title = c.To
		} else {
			out.Description = c.To
		}
	case PropertyChange:
		if !rawEqual(claim.Properties[c.Key], c.From) {
			return Claim{}, ErrIncumbentMismatch
		}
		out.Properties[c.Key] = cloneRaw(c.To)
	case PropertyRemoval:
		current, ok := claim.Properties[c.Key]
		if !ok || !rawEqual(current, c.From) {
			return Claim{}, ErrIncumbentMismatch
		}
		delete(out.Properties, c.Key)
	default:
		return Claim{}, fmt.Errorf("unsupported change %T", change)
	}
	return out, nil
}

// MarshalChange encodes a change with its kind discriminator
func MarshalChange(c AmendmentChange) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal change: %w", err)
	}
	return json.Marshal(taggedPayload{Kind: c.ChangeKind(), Data: data})
}

// UnmarshalChange decodes a payload produced by MarshalChange
func UnmarshalChange(raw []byte) (AmendmentChange, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var tagged taggedPayload
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, fmt.Errorf("unmarshal change: %w", err)
	}
	switch tagged.Kind {
	case "text":
		var v TextChange
		if err := json.Unmarshal(tagged.Data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal text change: %w", err)
		}
		return v, nil
	case "property_set":
		var v PropertyChange
		if err := json.Unmarshal(tagged.Data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal property change: %w", err)
		}
		return v, nil
	case "property_remove":
		var v PropertyRemoval
		if err := json.Unmarshal(tagged.Data, &v); err != nil {
			return nil, fmt.Errorf("unmarshal property removal: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown change kind %q", tagged.Kind)
	}
}

func rawEqual(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}
