//go:build !tinygo

package hal

import "time"

// tickDur is the host tick period.
const tickDur = time.Millisecond

// hostTime turns wall-clock progress, sampled by the runner on every frame,
// into 1ms ticks.
type hostTime struct {
	ch  chan uint64
	seq uint64

	now  func() time.Time
	last time.Time
	acc  time.Duration
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024), now: time.Now}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// step emits the ticks elapsed since the previous call. The first call
// emits min ticks; later calls emit at least min as well, so a runner that
// is ahead of the wall clock still advances.
func (t *hostTime) step(min uint64) {
	now := t.now()
	if t.last.IsZero() {
		t.last = now
		t.stepN(min)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / tickDur)
	t.acc %= tickDur
	if ticks < min {
		ticks = min
	}
	t.stepN(ticks)
}

func (t *hostTime) stepN(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
