// Package sched sequences the per-frame work of the pipeline.
//
// A Scheduler is advanced by exactly one Step per channel-1 heartbeat. Its
// phase counter walks through an idle settle period, the midline pass, the
// frequency pass and finally trigger search plus coordinate generation. All
// progress lives in the Scheduler itself, so a frame can be spread over as
// many heartbeats as the column budget requires without ever blocking the
// caller.
package sched

import (
	"tinyscope/scope/acquire"
	"tinyscope/scope/frame"
	"tinyscope/scope/measure"
	"tinyscope/scope/settings"
)

// Phase boundaries, in heartbeats since the last completed frame.
const (
	SettlePhase    = 35
	MidlinePhase   = 37
	FrequencyPhase = 38
	FormatPhase    = 41
)

// Outcome reports what a single Step did.
type Outcome uint8

const (
	Idle Outcome = iota
	Stale
	MidlineDone
	FrequencyDone
	TriggerRetry
	Building
	Wrapped
	FrameDone
)

func (o Outcome) String() string {
	switch o {
	case Idle:
		return "idle"
	case Stale:
		return "stale"
	case MidlineDone:
		return "midline"
	case FrequencyDone:
		return "frequency"
	case TriggerRetry:
		return "trigger_retry"
	case Building:
		return "building"
	case Wrapped:
		return "wrapped"
	case FrameDone:
		return "frame_done"
	default:
		return "unknown"
	}
}

// Config tunes the scheduler.
type Config struct {
	// ColumnsPerStep caps the pixel columns generated per heartbeat.
	// Zero (or anything >= frame.Width) builds the whole frame in one step.
	ColumnsPerStep int
}

// Stats counts scheduler events since creation.
type Stats struct {
	Frames         uint64
	Wraps          uint64
	TriggerRetries uint64
}

// Scheduler is the acquisition state machine.
type Scheduler struct {
	capture *acquire.Capture
	store   *settings.Store
	frame   *frame.Frame
	cfg     Config

	phase     int
	cursor    int
	readIndex uint32

	midline [acquire.NumChannels]measure.Midline
	freq    [acquire.NumChannels]measure.Frequency
	trigger measure.Trigger

	stats Stats
}

// New returns a scheduler at phase 0.
func New(c *acquire.Capture, st *settings.Store, f *frame.Frame, cfg Config) *Scheduler {
	return &Scheduler{capture: c, store: st, frame: f, cfg: cfg}
}

// Step advances the state machine by one heartbeat.
//
// Both channels' stable flags are latched once on entry and the same view
// is used for the whole step.
func (s *Scheduler) Step() Outcome {
	view := s.capture.Latch()
	cfg := s.store.Get()

	out := Idle
	switch s.phase {
	case SettlePhase:
		s.frame.ClearReady()
		out = Stale

	case MidlinePhase:
		for ch := range view {
			s.midline[ch] = measure.FindMidline(view[ch])
		}
		out = MidlineDone

	case FrequencyPhase:
		for ch := range view {
			f := measure.FindFrequency(view[ch], s.midline[ch])
			s.freq[ch] = f
			if f.Found {
				s.frame.Freq[ch] = f.Hz
			}
		}
		out = FrequencyDone

	case FormatPhase:
		start, ok := s.startIndex(view, cfg)
		if !ok {
			// Stay on the format phase; the next heartbeat searches again.
			s.stats.TriggerRetries++
			return TriggerRetry
		}
		s.readIndex = start
	}

	if s.phase >= FormatPhase {
		return s.build(view, cfg)
	}
	s.phase++
	return out
}

func (s *Scheduler) startIndex(view acquire.View, cfg settings.Scope) (uint32, bool) {
	if cfg.FreeRun {
		s.trigger = measure.Trigger{}
		return 0, true
	}
	ch := cfg.TriggerChannel
	if !ch.Valid() {
		// No source to search: start untriggered.
		s.trigger = measure.Trigger{}
		return 0, true
	}
	s.trigger = measure.FindTrigger(view[ch], cfg.TriggerLevel, cfg.Slope)
	return s.trigger.Index, s.trigger.Found
}

// build generates pixel columns from the saved cursor and read index until
// the frame is full, the budget is spent or the read index leaves the
// buffer. Leaving the buffer keeps the cursor: the next heartbeat carries on
// from the start of the freshly latched buffers.
func (s *Scheduler) build(view acquire.View, cfg settings.Scope) Outcome {
	budget := s.cfg.ColumnsPerStep
	if budget <= 0 || budget > frame.Width {
		budget = frame.Width
	}
	step := frame.Step(cfg.XScale)
	gain := cfg.YGain()

	for n := 0; n < budget && s.cursor < frame.Width; n++ {
		if s.readIndex >= frame.MaxIndex {
			s.readIndex = 0
			s.phase++
			s.stats.Wraps++
			return Wrapped
		}
		s.frame.WriteColumn(s.cursor, view, s.readIndex, gain)
		s.cursor++
		s.readIndex += step
	}

	if s.cursor < frame.Width {
		s.phase++
		return Building
	}

	s.reset()
	s.stats.Frames++
	s.frame.MarkReady()
	return FrameDone
}

func (s *Scheduler) reset() {
	s.phase = 0
	s.cursor = 0
	s.readIndex = 0
}

// Restart abandons any in-progress frame and returns to phase 0. Cached
// measurements are kept.
func (s *Scheduler) Restart() { s.reset() }

// Phase returns the current phase counter.
func (s *Scheduler) Phase() int { return s.phase }

// Cursor returns the next pixel column to generate.
func (s *Scheduler) Cursor() int { return s.cursor }

// ReadIndex returns the saved scaled buffer read index.
func (s *Scheduler) ReadIndex() uint32 { return s.readIndex }

// Midline returns the cached midline of ch.
func (s *Scheduler) Midline(ch acquire.Channel) measure.Midline { return s.midline[ch] }

// Frequency returns the last frequency search result of ch, found or not.
func (s *Scheduler) Frequency(ch acquire.Channel) measure.Frequency { return s.freq[ch] }

// Trigger returns the last trigger search result.
func (s *Scheduler) Trigger() measure.Trigger { return s.trigger }

// Stats returns event counters.
func (s *Scheduler) Stats() Stats { return s.stats }
