package hal

import (
	"errors"

	"tinyscope/scope/acquire"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb, stored little-endian.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// KeyCode is a minimal key identifier.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyPageUp
	KeyPageDown
)

// KeyEvent is a keyboard event. Text input arrives with Code == KeyUnknown
// and Rune set.
type KeyEvent struct {
	Code  KeyCode
	Press bool
	Rune  rune
}

// Keyboard provides key events (best-effort on each platform).
type Keyboard interface {
	Events() <-chan KeyEvent
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Input provides access to input devices (if available).
type Input interface {
	Keyboard() Keyboard
}

// Time provides a base tick stream.
//
// The tick duration is platform-defined (1ms on every current platform).
type Time interface {
	Ticks() <-chan uint64
}

// Serial is a byte link to the operator console. Read never blocks: it
// returns 0, nil when no bytes are waiting.
type Serial interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Analog is the two-channel capture front end plus the vertical offset
// potentiometers.
type Analog interface {
	// Start begins continuous capture into c. Each filled buffer is
	// reported through c.OnComplete.
	Start(c *acquire.Capture) error
	// Poll services software-driven capture. Hardware front ends, which
	// complete buffers on their own, return immediately.
	Poll()
	// Offset returns the raw offset reading for ch (0..MaxValue).
	Offset(ch acquire.Channel) uint16
}

// OffsetSetter is implemented by front ends whose offsets can be moved from
// software (the host simulator).
type OffsetSetter interface {
	SetOffset(ch acquire.Channel, raw uint16)
}

// HAL provides the only contact point between the scope and the outside
// world.
type HAL interface {
	Logger() Logger
	Display() Display
	Input() Input
	Time() Time
	Serial() Serial
	Analog() Analog
}
