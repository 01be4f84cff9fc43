package asyncrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlreadyFilledErrorMessage(t *testing.T) {
	assert.Equal(t, "asyncrt: ivar already filled", (&AlreadyFilled{}).Error())
	assert.Equal(t, `asyncrt: ivar "counter" already filled`, (&AlreadyFilled{Name: "counter"}).Error())
}

func TestAlreadyClosedErrorMessage(t *testing.T) {
	err := &AlreadyClosed{Name: "fd1", State: FdClosed}
	assert.Equal(t, `asyncrt: fd "fd1" is Closed, not open`, err.Error())
}

func TestBadFdTransitionErrorMessage(t *testing.T) {
	err := &BadFdTransition{Name: "fd1", From: FdOpen, To: FdReplaced}
	assert.Contains(t, err.Error(), "Open -> Replaced")
}

func TestPanicErrorUnwrapsUnderlyingError(t *testing.T) {
	cause := errors.New("root cause")
	pe := PanicError{Value: cause}
	assert.Same(t, cause, pe.Unwrap())
	assert.True(t, errors.Is(pe, cause))
}

func TestPanicErrorUnwrapReturnsNilForNonErrorValue(t *testing.T) {
	pe := PanicError{Value: "not an error"}
	assert.Nil(t, pe.Unwrap())
	assert.Equal(t, "asyncrt: panic: not an error", pe.Error())
}

func TestAggregateErrorUnwrapsEveryContainedError(t *testing.T) {
	e1 := errors.New("first")
	e2 := errors.New("second")
	agg := &AggregateError{Message: "batch failed", Errors: []error{e1, e2}}

	assert.Contains(t, agg.Error(), "batch failed")
	assert.Contains(t, agg.Error(), "2 errors")
	assert.True(t, errors.Is(agg, e1))
	assert.True(t, errors.Is(agg, e2))
	assert.Same(t, e1, agg.AggregateErrorCause())
}

func TestAggregateErrorIsMatchesOnlyAggregateErrorTargets(t *testing.T) {
	agg := &AggregateError{Errors: []error{errors.New("x")}}
	other := &AggregateError{}
	assert.True(t, agg.Is(other))
	assert.False(t, agg.Is(errors.New("plain")))
}

func TestTypeErrorRangeErrorTimeoutErrorDefaults(t *testing.T) {
	assert.Equal(t, "asyncrt: type error", (&TypeError{}).Error())
	assert.Equal(t, "asyncrt: range error", (&RangeError{}).Error())
	assert.Equal(t, "asyncrt: operation timed out", (&TimeoutError{}).Error())
}

func TestTypeErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("cause")
	te := &TypeError{Cause: cause, Message: "wrapped"}
	assert.Same(t, cause, te.Unwrap())
	assert.True(t, errors.Is(te, cause))
}

func TestWrapErrorPreservesChain(t *testing.T) {
	cause := errors.New("cause")
	wrapped := WrapError("context", cause)
	require.Error(t, wrapped)
	assert.True(t, errors.Is(wrapped, cause))
	assert.Contains(t, wrapped.Error(), "context")
}
