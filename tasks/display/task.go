// Package display is the renderer: it draws finished frames, the grid and
// the status labels, and hands each drawn frame to optional sinks.
package display

import (
	"tinyscope/client/logger"
	"tinyscope/hal"
	"tinyscope/kernel"
	"tinyscope/proto"
	"tinyscope/scope/acquire"
	"tinyscope/scope/frame"
	"tinyscope/scope/settings"
)

// DefaultRefreshTicks is the redraw period while the scope is stopped.
const DefaultRefreshTicks = 500

// Sink receives a copy of every drawn frame. Publish runs on the renderer's
// step and must not block.
type Sink interface {
	Publish(snap frame.Snapshot, s settings.Scope)
}

// Config tunes the renderer.
type Config struct {
	RefreshTicks uint64
}

// Task owns the framebuffer.
type Task struct {
	disp   *fbDisplay
	frame  *frame.Frame
	store  *settings.Store
	offset hal.Analog
	ep     kernel.Capability
	logCap kernel.Capability
	cfg    Config
	sinks  []Sink

	started     bool
	dirty       bool
	lastRefresh uint64
	draws       uint64

	// prevOffset is where Previous was drawn, for the erase pass.
	prevOffset [acquire.NumChannels]int
}

// New returns a renderer drawing f into fb. offset supplies the vertical
// offset readings.
func New(fb hal.Framebuffer, f *frame.Frame, st *settings.Store, offset hal.Analog, ep, logCap kernel.Capability, cfg Config, sinks ...Sink) *Task {
	if cfg.RefreshTicks == 0 {
		cfg.RefreshTicks = DefaultRefreshTicks
	}
	return &Task{
		disp:   &fbDisplay{fb: fb},
		frame:  f,
		store:  st,
		offset: offset,
		ep:     ep,
		logCap: logCap,
		cfg:    cfg,
		sinks:  sinks,
	}
}

func (t *Task) Step(ctx *kernel.Context) {
	for {
		msg, ok := ctx.Recv(t.ep)
		if !ok {
			break
		}
		switch proto.Kind(msg.Kind) {
		case proto.MsgSettingsChanged:
			t.dirty = true
		case proto.MsgFrameReady:
			// The ready flag on the frame is authoritative; the message
			// only wakes us.
		}
	}

	s := t.store.Get()
	now := ctx.NowTick()

	if !t.started {
		t.started = true
		t.disp.clear()
		t.dirty = true
	}

	switch {
	case s.Running && t.frame.TakeReady():
		t.redraw(ctx, s, now)
		snap := t.frame.Snapshot()
		for _, sink := range t.sinks {
			sink.Publish(snap, s)
		}
	case t.dirty, !s.Running && now-t.lastRefresh >= t.cfg.RefreshTicks:
		t.redraw(ctx, s, now)
	}

	if s.Running {
		ctx.BlockOn(t.ep)
	} else {
		ctx.BlockOnTick()
	}
}

// redraw erases the previous traces, restores grid and labels, reads the
// offsets and draws the current traces.
func (t *Task) redraw(ctx *kernel.Context, s settings.Scope, now uint64) {
	f := t.frame
	for _, ch := range []acquire.Channel{acquire.Ch2, acquire.Ch1} {
		drawTrace(t.disp, &f.Previous[ch], frame.Height-t.prevOffset[ch], colorBG)
	}
	drawGrid(t.disp)
	drawLabels(t.disp, labels(f.Freq, s))

	if t.offset != nil {
		for _, ch := range []acquire.Channel{acquire.Ch1, acquire.Ch2} {
			f.SetOffset(ch, frame.OffsetFromPot(t.offset.Offset(ch)))
		}
	}
	for _, ch := range []acquire.Channel{acquire.Ch2, acquire.Ch1} {
		drawTrace(t.disp, &f.Current[ch], f.Baseline(ch), colorTrace[ch])
		t.prevOffset[ch] = f.Offset[ch]
	}
	f.Commit()

	if err := t.disp.Display(); err != nil && t.draws == 0 {
		logger.Logf(ctx, t.logCap, "display: present: %v", err)
	}
	t.draws++
	t.dirty = false
	t.lastRefresh = now
}

// Draws counts completed redraws.
func (t *Task) Draws() uint64 { return t.draws }
