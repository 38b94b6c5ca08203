//go:build !tinygo

package hal

import (
	"fmt"
	"os"
	"sync"

	"tinyscope/scope/frame"
)

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	t      *hostTime
	serial Serial
	analog *simAnalog
}

// New returns a host HAL with the default simulated inputs.
func New() HAL {
	return NewHost(DefaultHostConfig())
}

// NewHost returns a host HAL whose front end simulates cfg.Signals.
func NewHost(cfg HostConfig) HAL {
	return newHostHAL(cfg)
}

// stderrLogger is shared by every host HAL and by host-side goroutines
// outside the kernel, so their lines never interleave.
var stderrLogger = &hostLogger{w: os.Stderr}

// StderrLogger returns the process-wide host logger.
func StderrLogger() Logger { return stderrLogger }

func newHostHAL(cfg HostConfig) *hostHAL {
	logger := stderrLogger
	var serial Serial = nullSerial{}
	if cfg.Stdin {
		serial = newHostSerial(os.Stdin, os.Stdout)
	}
	return &hostHAL{
		logger: logger,
		fb:     newHostFramebuffer(frame.Width, frame.Height),
		kbd:    newHostKeyboard(),
		t:      newHostTime(),
		serial: serial,
		analog: newSimAnalog(cfg),
	}
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Input() Input     { return hostInput{kbd: h.kbd} }
func (h *hostHAL) Time() Time       { return h.t }
func (h *hostHAL) Serial() Serial   { return h.serial }
func (h *hostHAL) Analog() Analog   { return h.analog }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd *hostKeyboard
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }

type hostLogger struct {
	mu sync.Mutex
	w  *os.File
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type nullSerial struct{}

func (nullSerial) Read(p []byte) (int, error)  { return 0, nil }
func (nullSerial) Write(p []byte) (int, error) { return len(p), nil }
