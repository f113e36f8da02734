package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	base := NewFetchError("export API returned 502", errors.New("bad gateway"))
	wrapped := fmt.Errorf("run abc: %w", base)

	assert.True(t, IsFetch(wrapped))
	assert.False(t, IsPersistence(wrapped))
	assert.Equal(t, KindFetch, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestAppError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewPersistenceError("failed to insert leads", cause)

	assert.Equal(t, "PERSISTENCE: failed to insert leads: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "RECONCILIATION: listing L1 already sold", NewReconciliationError("listing L1 already sold").Error())
}

func TestStackOf(t *testing.T) {
	assert.Empty(t, StackOf(nil))
	assert.Contains(t, StackOf(NewInternalError("boom", nil)), "TestStackOf")
	assert.Contains(t, StackOf(errors.New("plain")), "plain")
}
