package acquisition

import (
	"errors"
	"testing"

	"tinyscope/kernel"
	"tinyscope/proto"
	"tinyscope/scope/acquire"
	"tinyscope/scope/frame"
	"tinyscope/scope/sched"
	"tinyscope/scope/settings"
)

// squareFront fills both channels with a 1000-sample square wave.
type squareFront struct {
	c        *acquire.Capture
	startErr error
	polls    int
}

func (s *squareFront) Start(c *acquire.Capture) error {
	s.c = c
	return s.startErr
}

func (s *squareFront) Poll() {
	s.polls++
	for _, ch := range []acquire.Channel{acquire.Ch2, acquire.Ch1} {
		buf := s.c.Set(ch).Active()
		for i := range buf {
			buf[i] = 524
			if i%1000 > 500 {
				buf[i] = 1524
			}
		}
		s.c.OnComplete(ch)
	}
}

func (s *squareFront) Offset(acquire.Channel) uint16 { return 0 }

type collector struct {
	ep  kernel.Capability
	got []proto.FrameReady
}

func (c *collector) Step(ctx *kernel.Context) {
	for {
		msg, ok := ctx.Recv(c.ep)
		if !ok {
			break
		}
		if proto.Kind(msg.Kind) == proto.MsgFrameReady {
			if fr, ok := proto.DecodeFrameReadyPayload(msg.Payload()); ok {
				c.got = append(c.got, fr)
			}
		}
	}
	ctx.BlockOn(c.ep)
}

type rig struct {
	k     *kernel.Kernel
	front *squareFront
	store *settings.Store
	frame *frame.Frame
	task  *Task
	sink  *collector
}

func newRig(running bool) *rig {
	r := &rig{
		k:     kernel.New(),
		front: &squareFront{},
		frame: &frame.Frame{},
	}
	s := settings.Defaults()
	s.Running = running
	r.store = settings.NewStore(s)
	ep := r.k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	r.sink = &collector{ep: ep.Restrict(kernel.RightRecv)}
	r.task = New(r.front, acquire.NewCapture(acquire.BufferLen), r.store, r.frame, sched.Config{}, ep.Restrict(kernel.RightSend), kernel.Capability{})
	r.k.AddTask(r.task)
	r.k.AddTask(r.sink)
	return r
}

// tick advances one kernel tick and runs every runnable task.
func (r *rig) tick() {
	for r.k.Step() {
	}
	r.k.Tick()
}

func TestFrameReadyAfterFullCycle(t *testing.T) {
	r := newRig(true)
	for i := 0; i < sched.FormatPhase; i++ {
		r.tick()
	}
	if len(r.sink.got) != 0 {
		t.Fatalf("frame ready after %d heartbeats", sched.FormatPhase)
	}
	r.tick()
	if len(r.sink.got) != 1 {
		t.Fatalf("got %d FrameReady messages, want 1", len(r.sink.got))
	}
	fr := r.sink.got[0]
	if fr.Seq != 1 || fr.Freq[acquire.Ch1] != 231 || fr.Freq[acquire.Ch2] != 231 {
		t.Fatalf("FrameReady = %+v", fr)
	}
	if !r.frame.Ready() {
		t.Fatalf("frame not marked ready")
	}
	if r.front.polls != sched.FormatPhase+1 {
		t.Fatalf("polls = %d, want %d", r.front.polls, sched.FormatPhase+1)
	}
}

func TestStoppedDoesNotAdvance(t *testing.T) {
	r := newRig(false)
	for i := 0; i < 100; i++ {
		r.tick()
	}
	if got := r.task.Scheduler().Phase(); got != 0 {
		t.Fatalf("Phase() = %d, want 0", got)
	}
	if r.front.polls != 100 {
		t.Fatalf("polls = %d, want 100", r.front.polls)
	}

	r.store.Update(func(s *settings.Scope) { s.Running = true })
	r.tick()
	if got := r.task.Scheduler().Phase(); got != 1 {
		t.Fatalf("Phase() after start = %d, want 1", got)
	}
}

func TestStartFailureParks(t *testing.T) {
	r := newRig(true)
	r.front.startErr = errors.New("no adc")
	for i := 0; i < 5; i++ {
		r.tick()
	}
	if r.front.polls != 0 {
		t.Fatalf("polls = %d, want 0", r.front.polls)
	}
}
