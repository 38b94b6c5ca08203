package display

import (
	"testing"

	"tinyscope/hal"
	"tinyscope/kernel"
	"tinyscope/proto"
	"tinyscope/scope/acquire"
	"tinyscope/scope/frame"
	"tinyscope/scope/sched"
	"tinyscope/scope/settings"
)

type testFB struct {
	buf      []byte
	presents int
}

func newTestFB() *testFB {
	return &testFB{buf: make([]byte, frame.Width*frame.Height*2)}
}

func (f *testFB) Width() int              { return frame.Width }
func (f *testFB) Height() int             { return frame.Height }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return frame.Width * 2 }
func (f *testFB) Buffer() []byte          { return f.buf }
func (f *testFB) Present() error          { f.presents++; return nil }

func (f *testFB) ClearRGB(r, g, b uint8) {
	p := hal.RGB565(r, g, b)
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i], f.buf[i+1] = byte(p), byte(p>>8)
	}
}

func (f *testFB) pixel(x, y int) uint16 {
	off := y*frame.Width*2 + x*2
	return uint16(f.buf[off]) | uint16(f.buf[off+1])<<8
}

type pots [acquire.NumChannels]uint16

func (p *pots) Start(*acquire.Capture) error     { return nil }
func (p *pots) Poll()                            {}
func (p *pots) Offset(ch acquire.Channel) uint16 { return p[ch] }

type recordSink struct {
	got []frame.Snapshot
}

func (r *recordSink) Publish(s frame.Snapshot, _ settings.Scope) { r.got = append(r.got, s) }

var (
	red    = hal.RGB565(0xff, 0, 0)
	yellow = hal.RGB565(0xff, 0xff, 0)
)

func TestFBDisplayClips(t *testing.T) {
	fb := newTestFB()
	d := &fbDisplay{fb: fb}
	d.SetPixel(-1, 5, colorText)
	d.SetPixel(5, frame.Height, colorText)
	d.SetPixel(frame.Width, 0, colorText)
	d.SetPixel(2, 3, colorText)
	if got := fb.pixel(2, 3); got != 0xffff {
		t.Fatalf("pixel(2,3) = %#x, want 0xffff", got)
	}
	d.FillRectangle(-10, -10, 20, 20, colorTrace[acquire.Ch1])
	if got := fb.pixel(9, 9); got != red {
		t.Fatalf("pixel(9,9) = %#x, want %#x", got, red)
	}
	if got := fb.pixel(10, 10); got != 0 {
		t.Fatalf("pixel(10,10) = %#x, want 0", got)
	}
}

func TestLabels(t *testing.T) {
	s := settings.Defaults()
	s.XScale = 250
	got := labels([acquire.NumChannels]uint32{1000, 42}, s)
	want := [4]string{"Ch1 Freq: 1000 HZ", "Ch2 Freq: 42 HZ", "Xscale: 250 us", "Yscale: 1000 mV"}
	if got != want {
		t.Fatalf("labels() = %q, want %q", got, want)
	}
}

func TestGridDashes(t *testing.T) {
	fb := newTestFB()
	drawGrid(&fbDisplay{fb: fb})
	grid := hal.RGB565(colorGrid.R, colorGrid.G, colorGrid.B)
	if got := fb.pixel(31, 0); got != grid {
		t.Fatalf("pixel(31,0) = %#x, want grid", got)
	}
	if got := fb.pixel(31, 5); got != 0 {
		t.Fatalf("pixel(31,5) = %#x, want gap", got)
	}
	if got := fb.pixel(2, 29); got != grid {
		t.Fatalf("pixel(2,29) = %#x, want grid", got)
	}
	if got := fb.pixel(30, 100); got != 0 {
		t.Fatalf("pixel(30,100) = %#x, want background", got)
	}
}

func flatTrace(tr *frame.Trace, y int) {
	for x := range tr {
		tr[x] = frame.Point{X: x, Y: y}
	}
}

func run(k *kernel.Kernel) {
	for k.Step() {
	}
}

func TestRendersReadyFrameAndErases(t *testing.T) {
	fb := newTestFB()
	f := &frame.Frame{}
	st := settings.NewStore(settings.Defaults())
	st.Update(func(s *settings.Scope) { s.Running = true })
	// Offsets 600/5 = 120 and 200/5 = 40 put the baselines at rows 120 and 200.
	p := &pots{600, 200}
	rec := &recordSink{}

	k := kernel.New()
	ep := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	task := New(fb, f, st, p, ep.Restrict(kernel.RightRecv), kernel.Capability{}, Config{}, rec)
	k.AddTask(task)

	flatTrace(f.Working(acquire.Ch1), -50)
	flatTrace(f.Working(acquire.Ch2), 0)
	f.Freq = [acquire.NumChannels]uint32{1000, 250}
	f.MarkReady()
	run(k)

	if task.Draws() != 1 {
		t.Fatalf("Draws() = %d, want 1", task.Draws())
	}
	if got := fb.pixel(100, 70); got != red {
		t.Fatalf("ch1 pixel = %#x, want red", got)
	}
	if got := fb.pixel(100, 71); got != red {
		t.Fatalf("ch1 second pen row = %#x, want red", got)
	}
	if got := fb.pixel(100, 200); got != yellow {
		t.Fatalf("ch2 pixel = %#x, want yellow", got)
	}
	if f.Previous != f.Current {
		t.Fatalf("Commit did not keep the drawn traces")
	}
	if len(rec.got) != 1 || rec.got[0].Freq[acquire.Ch1] != 1000 || rec.got[0].Y[acquire.Ch1][7] != -50 {
		t.Fatalf("sink got %+v", rec.got)
	}

	flatTrace(f.Working(acquire.Ch1), -20)
	f.MarkReady()
	k.Post(ep.Restrict(kernel.RightSend), uint16(proto.MsgFrameReady), nil)
	run(k)

	if task.Draws() != 2 {
		t.Fatalf("Draws() = %d, want 2", task.Draws())
	}
	if got := fb.pixel(100, 70); got != 0 {
		t.Fatalf("old trace pixel = %#x, want erased", got)
	}
	if got := fb.pixel(100, 100); got != red {
		t.Fatalf("new trace pixel = %#x, want red", got)
	}
	if fb.presents != 2 {
		t.Fatalf("presents = %d, want 2", fb.presents)
	}
}

func TestStoppedRefreshesPeriodically(t *testing.T) {
	fb := newTestFB()
	f := &frame.Frame{}
	st := settings.NewStore(settings.Defaults())

	k := kernel.New()
	ep := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	task := New(fb, f, st, nil, ep.Restrict(kernel.RightRecv), kernel.Capability{}, Config{RefreshTicks: 10})
	k.AddTask(task)

	run(k)
	if task.Draws() != 1 {
		t.Fatalf("initial Draws() = %d, want 1", task.Draws())
	}
	// A ready frame is ignored while stopped.
	f.MarkReady()
	k.TickTo(5)
	run(k)
	if task.Draws() != 1 {
		t.Fatalf("Draws() at tick 5 = %d, want 1", task.Draws())
	}
	k.TickTo(10)
	run(k)
	if task.Draws() != 2 {
		t.Fatalf("Draws() at tick 10 = %d, want 2", task.Draws())
	}

	k.Post(ep.Restrict(kernel.RightSend), uint16(proto.MsgSettingsChanged), proto.SettingsChangedPayload(1))
	k.TickTo(11)
	run(k)
	if task.Draws() != 3 {
		t.Fatalf("Draws() after settings change = %d, want 3", task.Draws())
	}
}

func fillFlat(c *acquire.Capture, ch acquire.Channel, v acquire.Sample) {
	for b := 0; b < 2; b++ {
		buf := c.Set(ch).Buffer(b)
		for i := range buf {
			buf[i] = v
		}
	}
}

func TestSettingsChangeMidBuildDrawsLastCompleteFrame(t *testing.T) {
	fb := newTestFB()
	f := &frame.Frame{}
	st := settings.NewStore(settings.Defaults())
	st.Update(func(s *settings.Scope) { s.Running = true })
	capture := acquire.NewCapture(acquire.BufferLen)
	sc := sched.New(capture, st, f, sched.Config{})
	heartbeat := func() sched.Outcome {
		capture.OnComplete(acquire.Ch1)
		capture.TakeHeartbeat()
		return sc.Step()
	}

	k := kernel.New()
	ep := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	send := ep.Restrict(kernel.RightSend)
	task := New(fb, f, st, &pots{600, 200}, ep.Restrict(kernel.RightRecv), kernel.Capability{}, Config{})
	k.AddTask(task)

	// Baseline row 120: 500 counts draws at row 95, 1500 counts at row 45.
	fillFlat(capture, acquire.Ch1, 500)
	for heartbeat() != sched.FrameDone {
	}
	run(k)
	if got := fb.pixel(100, 95); got != red {
		t.Fatalf("first frame pixel = %#x, want red", got)
	}

	fillFlat(capture, acquire.Ch1, 1500)
	st.Update(func(s *settings.Scope) { s.XScale = 2000 })
	for sc.Phase() < sched.FormatPhase {
		heartbeat()
	}
	if got := heartbeat(); got != sched.Wrapped {
		t.Fatalf("Step() = %s, want %s", got, sched.Wrapped)
	}

	k.Post(send, uint16(proto.MsgSettingsChanged), proto.SettingsChangedPayload(1))
	run(k)
	if task.Draws() != 2 {
		t.Fatalf("Draws() = %d, want 2", task.Draws())
	}
	for _, x := range []int{0, 100, 318} {
		if got := fb.pixel(x, 95); got != red {
			t.Fatalf("pixel(%d,95) = %#x, want last complete trace", x, got)
		}
		if got := fb.pixel(x, 45); got == red {
			t.Fatalf("pixel(%d,45) drawn from a partial frame", x)
		}
	}

	if got := heartbeat(); got != sched.FrameDone {
		t.Fatalf("Step() = %s, want %s", got, sched.FrameDone)
	}
	k.Post(send, uint16(proto.MsgFrameReady), nil)
	run(k)
	if got := fb.pixel(318, 45); got != red {
		t.Fatalf("pixel(318,45) = %#x, want new frame", got)
	}
	if got := fb.pixel(318, 95); got == red {
		t.Fatal("previous trace not erased")
	}
}
