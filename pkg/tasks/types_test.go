package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, CategoryUpload, categoryFor(TypeUpload))
	assert.Equal(t, CategoryDownload, categoryFor(TypeDownload))
	assert.Equal(t, CategoryCompute, categoryFor(TypeCompute))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, isTerminal(StatusCompleted))
	assert.True(t, isTerminal(StatusFailed))
	assert.True(t, isTerminal(StatusCancelled))
	assert.False(t, isTerminal(StatusPending))
	assert.False(t, isTerminal(StatusRunning))
}

func TestHandlerFuncAdapts(t *testing.T) {
	var h Handler = HandlerFunc(func(ctx context.Context, payload []byte, progress ProgressFunc) ([]byte, error) {
		return payload, nil
	})

	result, err := h.Execute(context.Background(), []byte("hello"), func(float64, string) {})
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), result)
}
