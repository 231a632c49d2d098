package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := Validation("cast_vote", "value %.2f outside [0,1]", 1.5)

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "cast_vote: validation: value 1.50 outside [0,1]", err.Error())
}

func TestError_WrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("promote graph: %w", Conflict("promote", "graph %s already promoted", "g1"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestDependencyTimeout_UnwrapsCause(t *testing.T) {
	err := DependencyTimeout("embed", context.DeadlineExceeded)

	assert.True(t, errors.Is(err, ErrDependencyTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "dependency did not respond")
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("get_claim", "claim", "c-1")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, `get_claim: not_found: claim "c-1" not found`, err.Error())
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
