// Package frame turns raw samples into display coordinates and carries the
// finished frame from the scheduler to the renderer.
package frame

import (
	"sync/atomic"

	"tinyscope/scope/acquire"
	"tinyscope/scope/measure"
)

const (
	// Width and Height are the display size in pixels.
	Width  = 320
	Height = 240

	// PixelsPerXDiv and PixelsPerYDiv size one grid division.
	PixelsPerXDiv = 32
	PixelsPerYDiv = 30

	// IndexDivisor turns µs/div into a per-column read-index step.
	IndexDivisor = 128

	// MaxIndex is the scaled read index one past the end of a buffer.
	MaxIndex = acquire.BufferLen * measure.IndexScale

	// PotScaleDown maps an offset potentiometer reading to pixels.
	PotScaleDown = 5

	voltageInt       = 330
	voltageScaleDown = 3200
)

// PixelY converts s to a row relative to the trace baseline. Rows grow
// downward, so larger voltages give more negative values. Overranged
// samples sit on the baseline. The result is not clamped.
func PixelY(s acquire.Sample, gain int) int {
	if s.Overranged() {
		return 0
	}
	return -int(s) * voltageInt * gain / (int(acquire.MaxValue) * voltageScaleDown)
}

// Step returns the scaled read-index advance per pixel column for a
// horizontal scale of xScale µs/div.
func Step(xScale int) uint32 {
	if xScale <= 0 {
		return 0
	}
	return uint32(xScale * measure.IndexScale / IndexDivisor)
}

// OffsetFromPot converts a raw offset reading to a pixel offset.
func OffsetFromPot(raw uint16) int { return int(raw) / PotScaleDown }

// Point is one pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Trace is one channel's coordinates, one point per pixel column.
type Trace [Width]Point

// Frame is the waveform hand-off. The scheduler fills a working trace
// column by column and MarkReady copies it into Current, so Current only
// ever holds complete frames. The renderer takes the ready flag, draws,
// then calls Commit to keep Current as Previous for the next erase pass.
type Frame struct {
	Current  [acquire.NumChannels]Trace
	Previous [acquire.NumChannels]Trace
	Offset   [acquire.NumChannels]int
	Freq     [acquire.NumChannels]uint32

	work  [acquire.NumChannels]Trace
	ready atomic.Bool
	seq   atomic.Uint64
}

// WriteColumn fills column x of the working trace of every channel from the
// latched view at scaled read index idx.
func (f *Frame) WriteColumn(x int, v acquire.View, idx uint32, gain int) {
	i := int(idx / measure.IndexScale)
	for ch := range f.work {
		buf := v[ch]
		y := 0
		if i < len(buf) {
			y = PixelY(buf[i], gain)
		}
		f.work[ch][x] = Point{X: x, Y: y}
	}
}

// Working returns the in-progress trace of ch.
func (f *Frame) Working(ch acquire.Channel) *Trace { return &f.work[ch] }

// MarkReady moves the working traces into Current and publishes the frame
// to the renderer.
func (f *Frame) MarkReady() {
	f.Current = f.work
	f.seq.Add(1)
	f.ready.Store(true)
}

// ClearReady withdraws a frame that is about to go stale.
func (f *Frame) ClearReady() { f.ready.Store(false) }

// Ready reports whether a finished frame is waiting.
func (f *Frame) Ready() bool { return f.ready.Load() }

// TakeReady consumes the ready flag.
func (f *Frame) TakeReady() bool { return f.ready.Swap(false) }

// Seq counts completed frames.
func (f *Frame) Seq() uint64 { return f.seq.Load() }

// SetOffset records the vertical pixel offset of ch.
func (f *Frame) SetOffset(ch acquire.Channel, px int) {
	if ch.Valid() {
		f.Offset[ch] = px
	}
}

// Baseline returns the display row that y == 0 maps to for ch.
func (f *Frame) Baseline(ch acquire.Channel) int { return Height - f.Offset[ch] }

// Commit copies Current into Previous.
func (f *Frame) Commit() {
	f.Previous = f.Current
}

// Snapshot is a detached copy of a frame for sinks outside the main loop.
type Snapshot struct {
	Seq    uint64                      `json:"seq"`
	Freq   [acquire.NumChannels]uint32 `json:"freq_hz"`
	Offset [acquire.NumChannels]int    `json:"offset"`
	Y      [acquire.NumChannels][]int  `json:"y"`
}

// Snapshot copies the current traces.
func (f *Frame) Snapshot() Snapshot {
	s := Snapshot{Seq: f.Seq(), Freq: f.Freq, Offset: f.Offset}
	for ch := range f.Current {
		ys := make([]int, Width)
		for x, p := range f.Current[ch] {
			ys[x] = p.Y
		}
		s.Y[ch] = ys
	}
	return s
}
