// Package measure scans a stable channel buffer for its midline, a trigger
// crossing and its fundamental frequency.
//
// All arithmetic is integer. Crossings are confirmed on four probes (the
// sample one noise margin back, the pair straddling the crossing, and the
// sample one noise margin forward) so single-sample spikes never count.
package measure

import (
	"tinyscope/scope/acquire"
	"tinyscope/scope/settings"
)

const (
	// NoiseMargin is the probe spacing that confirms a sustained transition.
	NoiseMargin = 12

	// MidlineStride is the subsampling step of the midline scan.
	MidlineStride = 100

	// NoiseThreshold is the smallest peak-to-peak swing treated as signal.
	NoiseThreshold = 100

	// IndexScale is the fixed-point factor applied to buffer indices so the
	// frame builder can step by fractional samples.
	IndexScale = 100

	// SamplingRate is the ADC rate in samples per second.
	SamplingRate = 231481

	// MaxFrequency is the plausibility ceiling in Hz.
	MaxFrequency = 1100
)

// Midline is the vertical midpoint of a buffer. OK is false for a flat or
// noise-only signal, in which case Level is 0.
type Midline struct {
	Level acquire.Sample
	OK    bool
}

// FindMidline estimates the midpoint of buf from every MidlineStride-th
// sample. Overranged samples are skipped.
func FindMidline(buf []acquire.Sample) Midline {
	var (
		lo   acquire.Sample = acquire.MaxValue
		hi   acquire.Sample
		seen bool
	)
	for i := 0; i < len(buf); i += MidlineStride {
		s := buf[i]
		if s.Overranged() {
			continue
		}
		seen = true
		if s > hi {
			hi = s
		}
		if s < lo {
			lo = s
		}
	}
	if !seen || hi-lo < NoiseThreshold {
		return Midline{}
	}
	return Midline{Level: lo + (hi-lo)/2, OK: true}
}

// edge classifies a confirmed crossing of level at index i.
type edge uint8

const (
	edgeNone edge = iota
	edgeRising
	edgeFalling
	edgeVoid // a probe was overranged
)

// crossingAt inspects the four probes around i. The caller keeps i inside
// [NoiseMargin, len(buf)-NoiseMargin).
func crossingAt(buf []acquire.Sample, i int, level acquire.Sample) edge {
	back, cur, next, fwd := buf[i-NoiseMargin], buf[i], buf[i+1], buf[i+NoiseMargin]
	if back.Overranged() || cur.Overranged() || next.Overranged() || fwd.Overranged() {
		return edgeVoid
	}
	switch {
	case cur < level && next >= level && back < level && fwd >= level:
		return edgeRising
	case cur > level && next <= level && back > level && fwd <= level:
		return edgeFalling
	}
	return edgeNone
}

// Trigger is the result of a trigger search. Index is the crossing position
// multiplied by IndexScale and is only meaningful when Found is true.
type Trigger struct {
	Index uint32
	Found bool
}

// Sample returns the unscaled buffer index of the trigger.
func (t Trigger) Sample() int { return int(t.Index / IndexScale) }

// FindTrigger returns the first confirmed crossing of level in direction
// slope, searching outside a NoiseMargin guard at each buffer edge.
//
// A candidate with an overranged probe is dropped and the scan skips an
// extra position past it.
func FindTrigger(buf []acquire.Sample, level acquire.Sample, slope settings.Slope) Trigger {
	want := edgeRising
	if slope == settings.Falling {
		want = edgeFalling
	}
	for i := NoiseMargin; i < len(buf)-NoiseMargin; i++ {
		switch crossingAt(buf, i, level) {
		case edgeVoid:
			i++
		case want:
			return Trigger{Index: uint32(i) * IndexScale, Found: true}
		}
	}
	return Trigger{}
}

// Frequency is the result of a frequency search. Hz is only meaningful when
// Found is true; a flat signal is found with Hz == 0.
type Frequency struct {
	Hz    uint32
	Found bool
}

// FindFrequency measures one full period of buf around midline m: the
// distance between the first confirmed midline crossing and the next one of
// the same polarity.
//
// A flat midline yields 0 Hz without scanning. Results above MaxFrequency,
// and buffers holding fewer than two like crossings, are not found.
func FindFrequency(buf []acquire.Sample, m Midline) Frequency {
	if !m.OK {
		return Frequency{Hz: 0, Found: true}
	}

	first := -1
	var polarity edge
	for i := NoiseMargin; i < len(buf)-NoiseMargin; i++ {
		e := crossingAt(buf, i, m.Level)
		switch e {
		case edgeVoid:
			i++
			continue
		case edgeNone:
			continue
		}
		if first < 0 {
			first = i
			polarity = e
			continue
		}
		if e != polarity {
			continue
		}
		hz := SamplingRate / uint32(i-first)
		if hz > MaxFrequency {
			return Frequency{}
		}
		return Frequency{Hz: hz, Found: true}
	}
	return Frequency{}
}
