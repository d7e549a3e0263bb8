package scheduler

import (
	"context"
	"sync"
	"time"
)

// Task is a cancelable run of a fixed number of ticks followed by a
// finish callback. It owns its goroutine; Stop waits for it to exit.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every runs onTick(i) for i in [0, ticks) every interval. onFinish runs
// exactly once on the task goroutine: with true after the last tick, with
// false when ctx is canceled or Stop is called first. No tick runs after
// cancellation.
func Every(ctx context.Context, interval time.Duration, ticks int, onTick func(i int), onFinish func(completed bool)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go t.loop(ctx, interval, ticks, onTick, onFinish)
	return t
}

func (t *Task) loop(ctx context.Context, interval time.Duration, ticks int, onTick func(int), onFinish func(bool)) {
	defer close(t.done)
	defer t.cancel()
	completed := false
	if onFinish != nil {
		defer func() { onFinish(completed) }()
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a Stop racing the tick wins
			if ctx.Err() != nil {
				return
			}
			if onTick != nil {
				onTick(i)
			}
		}
	}
	completed = ctx.Err() == nil
}

// Stop cancels the task and blocks until its goroutine has exited. It must
// not be called from inside the task's own callbacks.
func (t *Task) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the task has finished, completed or not.
func (t *Task) Done() <-chan struct{} { return t.done }
