// Package acquisition drives the capture front end and the frame scheduler.
package acquisition

import (
	"tinyscope/client/logger"
	"tinyscope/hal"
	"tinyscope/kernel"
	"tinyscope/proto"
	"tinyscope/scope/acquire"
	"tinyscope/scope/frame"
	"tinyscope/scope/sched"
	"tinyscope/scope/settings"
)

// Task polls the analog front end and runs one scheduler step per channel-1
// heartbeat while the scope is running.
type Task struct {
	analog  hal.Analog
	capture *acquire.Capture
	store   *settings.Store
	frame   *frame.Frame
	sched   *sched.Scheduler

	displayCap kernel.Capability
	logCap     kernel.Capability

	started bool
	failed  bool
}

func New(a hal.Analog, c *acquire.Capture, st *settings.Store, f *frame.Frame, cfg sched.Config, displayCap, logCap kernel.Capability) *Task {
	return &Task{
		analog:     a,
		capture:    c,
		store:      st,
		frame:      f,
		sched:      sched.New(c, st, f, cfg),
		displayCap: displayCap,
		logCap:     logCap,
	}
}

func (t *Task) Step(ctx *kernel.Context) {
	if !t.started {
		t.started = true
		if t.analog == nil {
			t.failed = true
		} else if err := t.analog.Start(t.capture); err != nil {
			t.failed = true
			logger.Logf(ctx, t.logCap, "acquisition: start: %v", err)
		}
	}
	if t.failed {
		ctx.BlockOnTick()
		return
	}

	t.analog.Poll()

	// A heartbeat left over from a stopped period is consumed on resume.
	if t.store.Get().Running && t.capture.TakeHeartbeat() {
		if t.sched.Step() == sched.FrameDone {
			ready := proto.FrameReady{Seq: t.frame.Seq(), Freq: t.frame.Freq}
			ctx.SendTo(t.displayCap, uint16(proto.MsgFrameReady), proto.FrameReadyPayload(ready))
		}
	}
	ctx.BlockOnTick()
}

// Scheduler exposes the state machine for inspection.
func (t *Task) Scheduler() *sched.Scheduler { return t.sched }
