package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "fatal", KindFatal.String())
	assert.Equal(t, "recoverable", KindRecoverable.String())
	assert.Equal(t, "degraded", KindDegraded.String())
	assert.Equal(t, "parse", KindParse.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := Fatal("setup", "admin login failed", cause)

	assert.Equal(t, "setup: admin login failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "login failed", New(KindParse, "", "login failed", nil).Error())
}

func TestKindOfThroughWrapping(t *testing.T) {
	err := fmt.Errorf("engine: %w", Degraded("login", "teacher role unavailable", nil))

	assert.Equal(t, KindDegraded, KindOf(err))
	assert.True(t, IsKind(err, KindDegraded))
	assert.False(t, IsFatal(err))
	assert.Equal(t, KindRecoverable, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindRecoverable))
}

func TestErrMissingTokenMatches(t *testing.T) {
	wrapped := fmt.Errorf("vu-3: %w", ErrMissingToken)

	assert.ErrorIs(t, wrapped, ErrMissingToken)
	assert.True(t, IsFatal(wrapped))
	assert.NotErrorIs(t, Fatal("iteration", "other", nil), ErrMissingToken)
}
