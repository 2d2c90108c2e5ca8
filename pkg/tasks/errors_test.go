package tasks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(KindBusy, "category at capacity", cause)

	assert.Equal(t, "category at capacity: boom", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindBusy, KindOf(NewError(KindBusy, "x", nil)))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain error")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
