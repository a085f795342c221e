package mqttwire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlowComplete(t *testing.T) {
	f := newFlow()
	assert.NoError(t, f.Err())

	select {
	case <-f.Done():
		t.Fatal("pending flow reported done")
	default:
	}

	assert.True(t, f.complete(nil))
	assert.False(t, f.complete(errors.New("late")))
	assert.NoError(t, f.Wait(context.Background()))
	assert.False(t, f.IsCancelled())
}

func TestFlowError(t *testing.T) {
	f := newFlow()
	want := errors.New("reauth failed")

	go f.complete(want)

	assert.ErrorIs(t, f.Wait(context.Background()), want)
}

func TestFlowCancel(t *testing.T) {
	f := newFlow()
	assert.False(t, f.IsCancelled())

	assert.True(t, f.Cancel())
	assert.False(t, f.Cancel())
	assert.False(t, f.complete(nil))

	assert.True(t, f.IsCancelled())
	assert.ErrorIs(t, f.Err(), ErrFlowCancelled)
}

func TestFlowWaitContext(t *testing.T) {
	f := newFlow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, f.Wait(ctx), context.DeadlineExceeded)

	// the flow itself is untouched
	assert.True(t, f.complete(nil))
}
