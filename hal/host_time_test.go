//go:build !tinygo

package hal

import (
	"testing"
	"time"
)

func drainTicks(t *hostTime) (last uint64, n int) {
	for {
		select {
		case seq := <-t.ch:
			last = seq
			n++
		default:
			return last, n
		}
	}
}

func TestHostTimeStep(t *testing.T) {
	now := time.Unix(0, 0)
	ht := newHostTime()
	ht.now = func() time.Time { return now }

	ht.step(1)
	if last, n := drainTicks(ht); last != 1 || n != 1 {
		t.Fatalf("first step: last=%d n=%d", last, n)
	}

	now = now.Add(16*time.Millisecond + 500*time.Microsecond)
	ht.step(1)
	if last, n := drainTicks(ht); last != 17 || n != 16 {
		t.Fatalf("16.5ms step: last=%d n=%d", last, n)
	}

	// The carried half millisecond plus another half makes one tick.
	now = now.Add(500 * time.Microsecond)
	ht.step(0)
	if _, n := drainTicks(ht); n != 1 {
		t.Fatalf("carry step: n=%d, want 1", n)
	}

	ht.step(1)
	if _, n := drainTicks(ht); n != 1 {
		t.Fatalf("no elapsed time: n=%d, want the minimum of 1", n)
	}
}
