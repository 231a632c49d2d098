package model

// Tier is the discrete trust class a score maps to. Tiers are ordered: Excluded < Weak < Credible < Verified.
type Tier int

const (
	TierExcluded Tier = iota
	TierWeak
	TierCredible
	TierVerified
)

func (t Tier) String() string {
	switch t {
	case TierVerified:
		return "verified"
	case TierCredible:
		return "credible"
	case TierWeak:
		return "weak"
	default:
		return "excluded"
	}
}

// MarshalText encodes the tier by name
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// PositionStatus returns the position status a classified position moves to.
// Verified positions are reported as credible; positions have no verified state.
func (t Tier) PositionStatus() PositionStatus {
	switch t {
	case TierVerified, TierCredible:
		return PositionCredible
	case TierWeak:
		return PositionWeak
	default:
		return PositionExcluded
	}
}
