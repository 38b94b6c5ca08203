// Package settings holds the scope's operating parameters.
//
// The store does no validation: the command processor checks ranges before
// writing, and every pipeline stage tolerates any value inside the declared
// ranges.
package settings

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"

	"tinyscope/scope/acquire"
)

// Slope selects the trigger edge direction.
type Slope uint8

const (
	Rising Slope = iota
	Falling
)

func (s Slope) String() string {
	if s == Falling {
		return "negative"
	}
	return "positive"
}

const (
	DefaultXScale       = 1000 // µs per division
	DefaultYScale       = 1000 // mV per division
	DefaultTriggerLevel = 1000 // ADC counts

	MinXScale = 100
	MaxXScale = 10000

	MinYScale = 500
	MaxYScale = 2000

	MinTriggerMillivolts = 100
	MaxTriggerMillivolts = 3200

	// FullScaleMillivolts is the input voltage that maps to acquire.MaxValue.
	FullScaleMillivolts = 3300

	// yScaleInvert turns mV/div into the vertical gain used by the frame
	// builder.
	yScaleInvert = 1_000_000
)

// Scope is a snapshot of the operating parameters.
type Scope struct {
	Running        bool
	FreeRun        bool
	Slope          Slope
	TriggerChannel acquire.Channel
	TriggerLevel   acquire.Sample // ADC counts
	XScale         int            // µs per division
	YScale         int            // mV per division
}

// Defaults returns the power-on settings.
func Defaults() Scope {
	return Scope{
		Running:        false,
		FreeRun:        true,
		Slope:          Rising,
		TriggerChannel: acquire.Ch1,
		TriggerLevel:   DefaultTriggerLevel,
		XScale:         DefaultXScale,
		YScale:         DefaultYScale,
	}
}

// Triggered reports whether frames are gated on a trigger.
func (s Scope) Triggered() bool { return !s.FreeRun }

// YGain returns the integer vertical gain (1e6 / mV-per-div) the frame
// builder multiplies samples by.
func (s Scope) YGain() int {
	if s.YScale <= 0 {
		return 0
	}
	return yScaleInvert / s.YScale
}

// TriggerMillivolts converts the trigger level back to millivolts.
func (s Scope) TriggerMillivolts() int {
	return int(s.TriggerLevel) * FullScaleMillivolts / int(acquire.MaxValue)
}

// TriggerVoltage is TriggerMillivolts as a physical quantity.
func (s Scope) TriggerVoltage() physic.ElectricPotential {
	return physic.ElectricPotential(s.TriggerMillivolts()) * physic.MilliVolt
}

// YDivision is the vertical scale as a physical quantity.
func (s Scope) YDivision() physic.ElectricPotential {
	return physic.ElectricPotential(s.YScale) * physic.MilliVolt
}

// XDivision is the horizontal scale as a duration.
func (s Scope) XDivision() time.Duration {
	return time.Duration(s.XScale) * time.Microsecond
}

// LevelFromMillivolts converts a trigger voltage to ADC counts.
func LevelFromMillivolts(mv int) acquire.Sample {
	if mv < 0 {
		mv = 0
	}
	return acquire.Sample(mv * int(acquire.MaxValue) / FullScaleMillivolts)
}

// Store is the shared settings record. Writers are the command processor
// and the config loader; every pipeline stage reads snapshots.
type Store struct {
	mu  sync.RWMutex
	s   Scope
	gen uint64
}

// NewStore returns a store holding initial.
func NewStore(initial Scope) *Store {
	return &Store{s: initial}
}

// Get returns a snapshot of the current settings.
func (st *Store) Get() Scope {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Update applies fn under the write lock and returns the new snapshot.
func (st *Store) Update(fn func(*Scope)) Scope {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.s)
	st.gen++
	return st.s
}

// Generation counts updates; readers compare it to notice changes.
func (st *Store) Generation() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.gen
}
