// Package acquire holds the ping-pong sample buffers filled by the capture
// hardware and the flags that hand finished buffers to the pipeline.
//
// Ownership is split between two sides. The capture side (DMA completion
// handlers, or the host simulator) writes the active buffer of each pair and
// calls Capture.OnComplete when it is full. The pipeline reads only the
// stable buffer. The per-channel stable flag is written solely by
// OnComplete and read by the pipeline between phases.
package acquire

import "sync/atomic"

// Sample is one raw ADC conversion result.
type Sample uint16

const (
	// MaxValue is the largest in-range conversion (11 bits).
	MaxValue Sample = 0x7FF
	// Overrange is the reserved bit the converter sets when the input left
	// its representable range. Such samples never carry signal data.
	Overrange Sample = 0x800
)

// Overranged reports whether s carries the out-of-range marker.
func (s Sample) Overranged() bool { return s&Overrange != 0 }

// BufferLen is the number of samples in one ping-pong buffer.
const BufferLen = 3200

// Channel identifies an analog input.
type Channel uint8

const (
	Ch1 Channel = iota
	Ch2
)

// NumChannels is the number of analog inputs.
const NumChannels = 2

func (c Channel) String() string {
	switch c {
	case Ch1:
		return "ch1"
	case Ch2:
		return "ch2"
	default:
		return "ch?"
	}
}

// Valid reports whether c names an existing channel.
func (c Channel) Valid() bool { return c < NumChannels }

// BufferSet is the ping-pong pair for one channel ("buffer A" = 0,
// "buffer B" = 1).
type BufferSet struct {
	bufs   [2][]Sample
	stable atomic.Uint32
}

// NewBufferSet allocates a pair of n-sample buffers. Buffer B starts out
// stable so the first completion (of buffer A) hands A to the pipeline.
func NewBufferSet(n int) *BufferSet {
	if n < 1 {
		n = 1
	}
	b := &BufferSet{}
	b.bufs[0] = make([]Sample, n)
	b.bufs[1] = make([]Sample, n)
	b.stable.Store(1)
	return b
}

// Len returns the length of each buffer.
func (b *BufferSet) Len() int { return len(b.bufs[0]) }

// Buffer returns buffer i (0 or 1).
func (b *BufferSet) Buffer(i int) []Sample { return b.bufs[i&1] }

// StableIndex returns the index of the buffer that is safe to read.
func (b *BufferSet) StableIndex() int { return int(b.stable.Load()) }

// Stable returns the buffer that is safe to read.
func (b *BufferSet) Stable() []Sample { return b.bufs[b.stable.Load()&1] }

// Active returns the buffer the capture side is filling.
func (b *BufferSet) Active() []Sample { return b.bufs[(b.stable.Load()+1)&1] }

// Complete swaps the roles of the pair and returns the new stable index.
func (b *BufferSet) Complete() int {
	for {
		old := b.stable.Load()
		next := (old + 1) & 1
		if b.stable.CompareAndSwap(old, next) {
			return int(next)
		}
	}
}

// View is a latched pair of stable buffers, one per channel.
type View [NumChannels][]Sample

// Capture groups both channels' buffer pairs with the channel-1 heartbeat.
type Capture struct {
	sets      [NumChannels]*BufferSet
	heartbeat atomic.Bool
	completed [NumChannels]atomic.Uint32
}

// NewCapture allocates buffer pairs of n samples for every channel.
func NewCapture(n int) *Capture {
	c := &Capture{}
	for i := range c.sets {
		c.sets[i] = NewBufferSet(n)
	}
	return c
}

// Set returns the buffer pair of ch.
func (c *Capture) Set(ch Channel) *BufferSet {
	if !ch.Valid() {
		return nil
	}
	return c.sets[ch]
}

// OnComplete is the capture-complete handler of ch. It only flips flags and
// is safe to call from interrupt context.
//
// Only channel 1 raises the heartbeat; channel 2 toggles its own stable flag
// and nothing else.
func (c *Capture) OnComplete(ch Channel) {
	if !ch.Valid() {
		return
	}
	c.sets[ch].Complete()
	c.completed[ch].Add(1)
	if ch == Ch1 {
		c.heartbeat.Store(true)
	}
}

// TakeHeartbeat consumes a pending channel-1 completion. Completions that
// arrive before the previous one was taken coalesce into one heartbeat.
func (c *Capture) TakeHeartbeat() bool { return c.heartbeat.Swap(false) }

// HeartbeatPending reports whether a heartbeat is waiting to be taken.
func (c *Capture) HeartbeatPending() bool { return c.heartbeat.Load() }

// Completions returns how many buffers ch has completed.
func (c *Capture) Completions(ch Channel) uint32 {
	if !ch.Valid() {
		return 0
	}
	return c.completed[ch].Load()
}

// Latch reads every channel's stable flag once and returns the buffers they
// designate. Callers hold on to the view for a whole phase so no scan
// straddles a flag change.
func (c *Capture) Latch() View {
	var v View
	for i, s := range c.sets {
		v[i] = s.Stable()
	}
	return v
}
