package logic

import (
	"context"
	"sync"
	"time"

	"hrtoolkit/internal/scheduler"
)

// SpinConfig shapes the cosmetic spin shown before a winner is announced.
type SpinConfig struct {
	Ticks    int
	Interval time.Duration
	Window   int // names sampled per tick
}

func DefaultSpin() SpinConfig {
	return SpinConfig{Ticks: 30, Interval: 100 * time.Millisecond, Window: 5}
}

// Draw picks single winners from a roster, with or without repeats.
// History is kept most recent first. While a spin is running, drawing,
// mode changes and resets are refused with ErrDrawBusy.
type Draw struct {
	mu      sync.Mutex
	rng     Rand
	roster  []string
	pool    []string
	history []string
	repeat  bool

	spin *scheduler.Task
	gen  uint64
}

func NewDraw(roster []string, rng Rand) *Draw {
	if rng == nil {
		rng = NewRand(0)
	}
	d := &Draw{rng: rng}
	d.resetLocked(roster)
	return d
}

func (d *Draw) resetLocked(roster []string) {
	d.roster = append([]string(nil), roster...)
	d.pool = append([]string(nil), roster...)
	d.history = nil
}

// source is the list a winner is drawn from in the current mode.
func (d *Draw) source() []string {
	if d.repeat {
		return d.roster
	}
	return d.pool
}

// Pick draws a winner immediately.
func (d *Draw) Pick() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spin != nil {
		return "", ErrDrawBusy
	}
	return d.pickLocked()
}

func (d *Draw) pickLocked() (string, error) {
	src := d.source()
	if len(src) == 0 {
		return "", ErrEmptyPool
	}
	i := d.rng.Intn(len(src))
	winner := src[i]
	if !d.repeat {
		pool := make([]string, 0, len(d.pool)-1)
		pool = append(pool, d.pool[:i]...)
		d.pool = append(pool, d.pool[i+1:]...)
	}
	d.history = append([]string{winner}, d.history...)
	return winner, nil
}

// Spin starts the cosmetic spin and returns immediately. onTick receives
// a few sampled names per tick. When the spin completes the real winner
// is picked and passed to onDone; if ctx is canceled first, onDone gets
// ctx's error and nothing is drawn. A spin canceled by SetRoster or Cancel
// reports nothing. Callbacks run on the spin goroutine and must not call
// SetRoster or Cancel.
func (d *Draw) Spin(ctx context.Context, cfg SpinConfig, onTick func(sample []string), onDone func(winner string, err error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spin != nil {
		return ErrDrawBusy
	}
	if len(d.source()) == 0 {
		return ErrEmptyPool
	}
	d.gen++
	gen := d.gen
	d.spin = scheduler.Every(ctx, cfg.Interval, cfg.Ticks,
		func(int) {
			if s := d.sample(gen, cfg.Window); s != nil && onTick != nil {
				onTick(s)
			}
		},
		func(completed bool) {
			winner, ok, err := d.finish(gen, completed)
			if !ok {
				return
			}
			if !completed {
				err = context.Cause(ctx)
			}
			if onDone != nil {
				onDone(winner, err)
			}
		})
	return nil
}

// sample draws display-only names with replacement.
func (d *Draw) sample(gen uint64, window int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	src := d.source()
	if gen != d.gen || len(src) == 0 {
		return nil
	}
	if window <= 0 {
		window = 1
	}
	out := make([]string, window)
	for i := range out {
		out[i] = src[d.rng.Intn(len(src))]
	}
	return out
}

// finish reports ok=false when the spin was detached and must stay silent.
func (d *Draw) finish(gen uint64, completed bool) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || d.spin == nil {
		return "", false, nil
	}
	d.spin = nil
	if !completed {
		return "", true, nil
	}
	winner, err := d.pickLocked()
	return winner, true, err
}

// detachLocked drops the running spin, if any, so its completion is ignored.
// The caller stops the returned task after releasing the lock.
func (d *Draw) detachLocked() *scheduler.Task {
	t := d.spin
	d.spin = nil
	d.gen++
	return t
}

// Cancel aborts a running spin without drawing. Draw state is kept.
func (d *Draw) Cancel() {
	d.mu.Lock()
	t := d.detachLocked()
	d.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

// SetRoster replaces the roster. Any pending spin is canceled outright and
// the pool and history are reset.
func (d *Draw) SetRoster(roster []string) {
	d.mu.Lock()
	t := d.detachLocked()
	d.resetLocked(roster)
	d.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

// Reset restores the pool from the roster and clears history.
func (d *Draw) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spin != nil {
		return ErrDrawBusy
	}
	d.resetLocked(d.roster)
	return nil
}

func (d *Draw) SetRepeat(repeat bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.spin != nil {
		return ErrDrawBusy
	}
	d.repeat = repeat
	return nil
}

func (d *Draw) Repeat() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.repeat
}

func (d *Draw) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.spin != nil
}

// Remaining is the number of names that can still win in the current mode.
func (d *Draw) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.source())
}

func (d *Draw) Pool() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.pool...)
}

func (d *Draw) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.history...)
}

func (d *Draw) Roster() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.roster...)
}
