//go:build !tinygo

package hal

import (
	"errors"
	"sync"

	"tinyscope/scope/acquire"
)

// HostConfig describes the simulated front end of the host build.
type HostConfig struct {
	Signals [acquire.NumChannels]Signal
	// Pots are the initial raw offset readings.
	Pots [acquire.NumChannels]uint16
	Seed int64
	// Stdin enables the serial console on stdin/stdout.
	Stdin bool
}

// DefaultHostConfig returns a 1 kHz sine on channel 1 and a 250 Hz square
// on channel 2.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		Signals: [acquire.NumChannels]Signal{
			{Shape: ShapeSine, FreqHz: 1000, AmplitudeMV: 1000, OffsetMV: 1650, NoiseMV: 10},
			{Shape: ShapeSquare, FreqHz: 250, AmplitudeMV: 600, OffsetMV: 1650},
		},
		Pots: [acquire.NumChannels]uint16{600, 200},
		Seed: 1,
	}
}

// simAnalog fills one buffer per channel on every Poll. The stream is
// continuous across buffers, as with a free-running DMA capture.
type simAnalog struct {
	gens [acquire.NumChannels]*Generator

	mu      sync.Mutex
	pots    [acquire.NumChannels]uint16
	capture *acquire.Capture
}

func newSimAnalog(cfg HostConfig) *simAnalog {
	a := &simAnalog{pots: cfg.Pots}
	for ch := range a.gens {
		a.gens[ch] = NewGenerator(cfg.Signals[ch], cfg.Seed+int64(ch))
	}
	return a
}

func (a *simAnalog) Start(c *acquire.Capture) error {
	if c == nil {
		return errors.New("analog: nil capture")
	}
	a.capture = c
	return nil
}

func (a *simAnalog) Poll() {
	c := a.capture
	if c == nil {
		return
	}
	// Channel 2 first so the channel-1 heartbeat follows a fresh channel-2
	// buffer, matching the capture order of the board.
	for _, ch := range []acquire.Channel{acquire.Ch2, acquire.Ch1} {
		a.gens[ch].Fill(c.Set(ch).Active())
		c.OnComplete(ch)
	}
}

func (a *simAnalog) Offset(ch acquire.Channel) uint16 {
	if !ch.Valid() {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pots[ch]
}

func (a *simAnalog) SetOffset(ch acquire.Channel, raw uint16) {
	if !ch.Valid() {
		return
	}
	if raw > uint16(acquire.MaxValue) {
		raw = uint16(acquire.MaxValue)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pots[ch] = raw
}
