package mqttwire

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func waitLoop(t *testing.T, l *EventLoop) {
	t.Helper()
	done := make(chan struct{})
	require.True(t, l.Execute(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event loop did not run task")
	}
}

func TestEventLoopRunsTasksInOrder(t *testing.T) {
	l := NewEventLoop(nil)
	defer l.Stop()

	var got []int
	for i := range 100 {
		l.Execute(func() { got = append(got, i) })
	}
	waitLoop(t, l)

	want := make([]int, 100)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestEventLoopConcurrentSubmit(t *testing.T) {
	l := NewEventLoop(nil)
	defer l.Stop()

	count := 0
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				l.Execute(func() { count++ })
			}
		}()
	}
	wg.Wait()
	waitLoop(t, l)

	assert.Equal(t, 400, count)
}

func TestEventLoopStop(t *testing.T) {
	l := NewEventLoop(nil)

	ran := make(chan struct{})
	require.True(t, l.Execute(func() { close(ran) }))
	l.Stop()
	l.Stop()

	assert.False(t, l.Execute(func() { t.Error("task ran after stop") }))

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit")
	}
	select {
	case <-ran:
	default:
		t.Fatal("task queued before stop did not run")
	}
}

func TestEventLoopRecoversPanics(t *testing.T) {
	logger, logs := newObservedLogger(zapcore.DebugLevel)
	l := NewEventLoop(logger)
	defer l.Stop()

	l.Execute(func() { panic("boom") })
	waitLoop(t, l)

	entries := logs.FilterMessage("event loop task panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].ContextMap()[LogFieldError])
}

func TestEventLoopSchedule(t *testing.T) {
	l := NewEventLoop(nil)
	defer l.Stop()

	fired := make(chan struct{})
	l.Schedule(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled task did not run")
	}
}

func TestTimerCancel(t *testing.T) {
	l := NewEventLoop(nil)
	defer l.Stop()

	var timer *Timer
	fired := false
	l.Execute(func() {
		timer = l.Schedule(100*time.Millisecond, func() { fired = true })
	})
	waitLoop(t, l)
	l.Execute(func() { timer.Cancel() })

	time.Sleep(150 * time.Millisecond)
	waitLoop(t, l)
	assert.False(t, fired)

	var nilTimer *Timer
	nilTimer.Cancel()
}

func TestEventLoopGroup(t *testing.T) {
	g := NewEventLoopGroup(4, nil)
	defer g.Stop()

	assert.Equal(t, 4, g.Len())
	for i := range 20 {
		key := fmt.Sprintf("conn-%d", i)
		assert.Same(t, g.Next(key), g.Next(key))
	}

	single := NewEventLoopGroup(0, nil)
	assert.Equal(t, 1, single.Len())
	single.Stop()
}
