//go:build !tinygo

package app

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"tinyscope/hal"
	"tinyscope/kernel"
	"tinyscope/scope/acquire"
	"tinyscope/scope/frame"
	"tinyscope/scope/sched"
	"tinyscope/scope/settings"
)

type lines []string

func (l *lines) WriteLineString(s string) { *l = append(*l, s) }
func (l *lines) WriteLineBytes(b []byte)  { *l = append(*l, string(b)) }

type fb struct {
	buf        []byte
	presents   int
	presentErr error
}

func (f *fb) Width() int              { return frame.Width }
func (f *fb) Height() int             { return frame.Height }
func (f *fb) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *fb) StrideBytes() int        { return frame.Width * 2 }
func (f *fb) Buffer() []byte          { return f.buf }
func (f *fb) Present() error          { f.presents++; return f.presentErr }

func (f *fb) ClearRGB(r, g, b uint8) {
	p := hal.RGB565(r, g, b)
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i], f.buf[i+1] = byte(p), byte(p>>8)
	}
}

type link struct{ out bytes.Buffer }

func (l *link) Read(p []byte) (int, error)  { return 0, nil }
func (l *link) Write(p []byte) (int, error) { return l.out.Write(p) }

type ticks chan uint64

func (t ticks) Ticks() <-chan uint64 { return t }

type testHAL struct {
	log    lines
	fb     *fb
	link   *link
	ticks  ticks
	analog hal.Analog
}

func newTestHAL() *testHAL {
	return &testHAL{
		fb:     &fb{buf: make([]byte, frame.Width*frame.Height*2)},
		link:   &link{},
		ticks:  make(ticks, 1024),
		analog: hal.New().Analog(),
	}
}

type display struct{ fb hal.Framebuffer }

func (d display) Framebuffer() hal.Framebuffer { return d.fb }

func (h *testHAL) Logger() hal.Logger   { return &h.log }
func (h *testHAL) Display() hal.Display { return display{fb: h.fb} }
func (h *testHAL) Input() hal.Input     { return nil }
func (h *testHAL) Time() hal.Time       { return h.ticks }
func (h *testHAL) Serial() hal.Serial   { return h.link }
func (h *testHAL) Analog() hal.Analog   { return h.analog }

// advance feeds n ticks, stepping the system after each one.
func advance(t *testing.T, s *System, h *testHAL, from, n uint64) {
	t.Helper()
	for seq := from; seq < from+n; seq++ {
		h.ticks <- seq
		if err := s.Step(); err != nil {
			t.Fatalf("Step() = %v", err)
		}
	}
}

func TestSystemProducesFrames(t *testing.T) {
	h := newTestHAL()
	cfg := DefaultConfig()
	cfg.Settings.Running = true
	s, err := New(h, cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	advance(t, s, h, 1, 2*(sched.FormatPhase+1))

	if got := s.Frame().Seq(); got < 1 {
		t.Fatalf("Frame().Seq() = %d, want >= 1", got)
	}
	if got := s.Display().Draws(); got < 2 {
		t.Fatalf("Draws() = %d, want >= 2", got)
	}
	// The simulated 1 kHz sine reads as about 1 kHz on channel 1.
	if f := s.Frame().Freq[acquire.Ch1]; f < 990 || f > 1010 {
		t.Fatalf("ch1 freq = %d, want about 1000", f)
	}
	if !strings.HasPrefix(h.link.out.String(), "Welcome to the tinyscope!\n") {
		t.Fatalf("serial output = %q", h.link.out.String())
	}
}

func TestNotifySettingsRedrawsWhileStopped(t *testing.T) {
	h := newTestHAL()
	s, err := New(h, DefaultConfig())
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	advance(t, s, h, 1, 3)
	before := s.Display().Draws()

	s.Store().Update(func(sc *settings.Scope) { sc.XScale = 200 })
	s.NotifySettings()
	advance(t, s, h, 4, 1)
	if got := s.Display().Draws(); got != before+1 {
		t.Fatalf("Draws() = %d, want %d", got, before+1)
	}
	if s.Frame().Seq() != 0 {
		t.Fatalf("frames built while stopped")
	}
}

type boom struct{}

func (boom) Step(*kernel.Context) { panic("boom") }

func TestPanicScreen(t *testing.T) {
	h := newTestHAL()
	cfg := DefaultConfig()
	cfg.HaltOnPanic = true
	s, err := New(h, cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	s.Kernel().AddTask(boom{})

	h.ticks <- 1
	if err := s.Step(); !errors.Is(err, ErrHalted) {
		t.Fatalf("Step() = %v, want ErrHalted", err)
	}
	if len(h.log) < 3 || h.log[0] != "tinyscope panic:" || h.log[2] != "panic: boom" {
		t.Fatalf("log = %q", h.log)
	}
	// White background with dark text somewhere in the first line.
	white, dark := 0, 0
	for x := 0; x < frame.Width; x++ {
		for y := 0; y < 10; y++ {
			off := y*frame.Width*2 + x*2
			p := uint16(h.fb.buf[off]) | uint16(h.fb.buf[off+1])<<8
			if p == 0xffff {
				white++
			} else {
				dark++
			}
		}
	}
	if white == 0 || dark == 0 {
		t.Fatalf("panic screen: white=%d dark=%d", white, dark)
	}
}

func TestPanicScreenLogsPresentError(t *testing.T) {
	h := newTestHAL()
	cfg := DefaultConfig()
	cfg.HaltOnPanic = true
	s, err := New(h, cfg)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	s.Kernel().AddTask(boom{})
	h.fb.presentErr = errors.New("panel gone")

	h.ticks <- 1
	if err := s.Step(); !errors.Is(err, ErrHalted) {
		t.Fatalf("Step() = %v, want ErrHalted", err)
	}
	for _, line := range h.log {
		if line == "panic: present: panel gone" {
			return
		}
	}
	t.Fatalf("log = %q, want present error", h.log)
}

func TestTakeRunes(t *testing.T) {
	p, r := takeRunes("héllo", 2)
	if p != "hé" || r != "llo" {
		t.Fatalf("takeRunes() = %q, %q", p, r)
	}
	p, r = takeRunes("ab", 5)
	if p != "ab" || r != "" {
		t.Fatalf("takeRunes() = %q, %q", p, r)
	}
}
