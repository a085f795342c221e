package mqttwire

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/eapache/queue"
)

// EventLoop runs tasks one at a time, in submission order, on a single
// goroutine. State owned by a connection is only touched from its loop.
type EventLoop struct {
	mu      sync.Mutex
	tasks   *queue.Queue
	stopped bool

	wake   chan struct{}
	done   chan struct{}
	logger Logger
}

// NewEventLoop starts a loop. Panics raised by tasks are recovered and
// logged to logger, which may be nil.
func NewEventLoop(logger Logger) *EventLoop {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	l := &EventLoop{
		tasks:  queue.New(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

// Execute queues task. It returns false, without queueing, once Stop was
// called.
func (l *EventLoop) Execute(task func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return false
	}
	l.tasks.Add(task)

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Schedule runs task on the loop after d. The returned timer must only be
// cancelled from the loop.
func (l *EventLoop) Schedule(d time.Duration, task func()) *Timer {
	t := &Timer{}
	t.timer = time.AfterFunc(d, func() {
		l.Execute(func() {
			if !t.cancelled {
				task()
			}
		})
	})
	return t
}

// Stop stops accepting tasks. Tasks already queued still run. Stop does not
// wait; use Done for that.
func (l *EventLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return
	}
	l.stopped = true
	close(l.wake)
}

// Done is closed once the loop goroutine has exited.
func (l *EventLoop) Done() <-chan struct{} { return l.done }

func (l *EventLoop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tasks.Length() == 0 {
		return nil, false
	}
	return l.tasks.Remove().(func()), true
}

func (l *EventLoop) run() {
	defer close(l.done)

	for range l.wake {
		l.drain()
	}
	l.drain()
}

func (l *EventLoop) drain() {
	for {
		task, ok := l.next()
		if !ok {
			return
		}
		l.runTask(task)
	}
}

func (l *EventLoop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", LogFields{LogFieldError: fmt.Sprint(r)})
		}
	}()
	task()
}

// Timer is a task scheduled on an EventLoop.
type Timer struct {
	timer     *time.Timer
	cancelled bool
}

// Cancel prevents the task from running. It must be called on the loop the
// timer was scheduled on.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.cancelled = true
	t.timer.Stop()
}

// EventLoopGroup is a fixed set of loops shared by many connections. A
// connection is pinned to one loop by hashing its id.
type EventLoopGroup struct {
	loops []*EventLoop
}

// NewEventLoopGroup starts n loops; n below one is treated as one.
func NewEventLoopGroup(n int, logger Logger) *EventLoopGroup {
	if n < 1 {
		n = 1
	}
	g := &EventLoopGroup{loops: make([]*EventLoop, n)}
	for i := range g.loops {
		g.loops[i] = NewEventLoop(logger)
	}
	return g
}

// Next returns the loop for key. The same key always maps to the same loop.
func (g *EventLoopGroup) Next(key string) *EventLoop {
	return g.loops[xxhash.Sum64String(key)%uint64(len(g.loops))]
}

// Len returns the number of loops.
func (g *EventLoopGroup) Len() int { return len(g.loops) }

// Stop stops every loop and waits for them to exit.
func (g *EventLoopGroup) Stop() {
	for _, l := range g.loops {
		l.Stop()
	}
	for _, l := range g.loops {
		<-l.Done()
	}
}
