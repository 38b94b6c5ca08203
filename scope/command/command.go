// Package command is the text command processor that changes scope
// settings. Lines arrive a byte at a time from a serial link, are stripped
// of whitespace, and are matched case-insensitively by prefix, so
// "set xscale 500", "SetXScale500" and "setxscale500" are the same command.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tinyscope/scope/acquire"
	"tinyscope/scope/settings"
)

// LineLimit is the size of the line buffer. A line ends at a newline or
// when LineLimit-1 non-whitespace bytes have been collected.
const LineLimit = 50

var (
	ErrUnknownCommand = errors.New("command: unknown command")
	ErrOutOfRange     = errors.New("command: argument out of range")
	ErrBusy           = errors.New("command: not allowed while running")
)

// Banner is written to a console when it attaches.
const Banner = "Welcome to the tinyscope!"

// ReplyInvalid is the reply to anything that is not an accepted command.
const ReplyInvalid = "Error - Invalid input"

// Assembler collects bytes into command lines.
type Assembler struct {
	buf [LineLimit]byte
	n   int
}

// Feed adds b to the pending line. It returns the finished line, without
// its newline, once one is complete.
func (a *Assembler) Feed(b byte) (string, bool) {
	switch b {
	case ' ', '\t', '\r':
		return "", false
	}
	a.buf[a.n] = b
	a.n++
	if b != '\n' && a.n < LineLimit-1 {
		return "", false
	}
	line := strings.TrimSuffix(string(a.buf[:a.n]), "\n")
	a.n = 0
	return line, true
}

// Pending returns the number of buffered bytes.
func (a *Assembler) Pending() int { return a.n }

// Reset drops a partial line.
func (a *Assembler) Reset() { a.n = 0 }

// Kind identifies a command.
type Kind uint8

const (
	Invalid Kind = iota
	ModeFree
	ModeTrigger
	SlopeNegative
	SlopePositive
	TriggerChannel1
	TriggerChannel2
	XScale
	YScale
	TriggerLevel
	Start
	Stop
)

// table is in match order. The first prefix that matches wins.
var table = []struct {
	prefix string
	kind   Kind
}{
	{"setmodefree", ModeFree},
	{"setmodetrigger", ModeTrigger},
	{"settrigger_slopenegative", SlopeNegative},
	{"settrigger_slopepositive", SlopePositive},
	{"settrigger_channel1", TriggerChannel1},
	{"settrigger_channel2", TriggerChannel2},
	{"setxscale", XScale},
	{"setyscale", YScale},
	{"settrigger_level", TriggerLevel},
	{"start", Start},
	{"stop", Stop},
}

// Command is a parsed line. Arg is only used by the numeric commands.
type Command struct {
	Kind Kind
	Arg  int
}

// String renders c in the canonical spaced form accepted by Parse.
func (c Command) String() string {
	switch c.Kind {
	case ModeFree:
		return "set mode free"
	case ModeTrigger:
		return "set mode trigger"
	case SlopeNegative:
		return "set trigger_slope negative"
	case SlopePositive:
		return "set trigger_slope positive"
	case TriggerChannel1:
		return "set trigger_channel 1"
	case TriggerChannel2:
		return "set trigger_channel 2"
	case XScale:
		return "set xscale " + strconv.Itoa(c.Arg)
	case YScale:
		return "set yscale " + strconv.Itoa(c.Arg)
	case TriggerLevel:
		return "set trigger_level " + strconv.Itoa(c.Arg)
	case Start:
		return "start"
	case Stop:
		return "stop"
	default:
		return "invalid"
	}
}

// Parse matches line against the command table. Whitespace anywhere in
// line is ignored. A numeric argument that does not start with digits
// parses as 0.
func Parse(line string) (Command, error) {
	lower := strings.ToLower(stripSpace(line))
	for _, e := range table {
		if !strings.HasPrefix(lower, e.prefix) {
			continue
		}
		c := Command{Kind: e.kind}
		switch e.kind {
		case XScale, YScale, TriggerLevel:
			c.Arg = leadingInt(lower[len(e.prefix):])
		}
		return c, nil
	}
	return Command{}, ErrUnknownCommand
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

// leadingInt reads an optionally signed decimal prefix of s.
func leadingInt(s string) int {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// Processor applies commands to a settings store.
type Processor struct {
	store *settings.Store
}

// NewProcessor returns a processor writing to st.
func NewProcessor(st *settings.Store) *Processor {
	return &Processor{store: st}
}

// Execute parses and applies one line. The reply is always set, also when
// err is non-nil, and is what the console shows the user.
func (p *Processor) Execute(line string) (string, error) {
	c, err := Parse(line)
	if err != nil {
		return ReplyInvalid, err
	}
	return p.Apply(c)
}

// Apply validates c against the current settings and writes it.
func (p *Processor) Apply(c Command) (string, error) {
	var (
		reply string
		err   error
	)
	p.store.Update(func(s *settings.Scope) {
		reply, err = apply(s, c)
	})
	return reply, err
}

func apply(s *settings.Scope, c Command) (string, error) {
	switch c.Kind {
	case ModeFree:
		s.FreeRun = true
		return "Mode set to free-running", nil

	case ModeTrigger:
		if s.Running {
			return ReplyInvalid, ErrBusy
		}
		s.FreeRun = false
		return "Mode set to trigger", nil

	case SlopeNegative, SlopePositive:
		if s.Running {
			return ReplyInvalid, ErrBusy
		}
		s.Slope = settings.Rising
		if c.Kind == SlopeNegative {
			s.Slope = settings.Falling
		}
		return "Trigger slope set to " + s.Slope.String(), nil

	case TriggerChannel1, TriggerChannel2:
		s.TriggerChannel = acquire.Ch1
		if c.Kind == TriggerChannel2 {
			s.TriggerChannel = acquire.Ch2
		}
		return fmt.Sprintf("Trigger source set to channel %d", s.TriggerChannel+1), nil

	case XScale:
		if c.Arg < settings.MinXScale || c.Arg > settings.MaxXScale {
			return "Invalid number to set xScale to", fmt.Errorf("xscale %d: %w", c.Arg, ErrOutOfRange)
		}
		s.XScale = c.Arg
		return fmt.Sprintf("set xscale to %d us", c.Arg), nil

	case YScale:
		if c.Arg < settings.MinYScale || c.Arg > settings.MaxYScale {
			return "Invalid number to set yScale to", fmt.Errorf("yscale %d: %w", c.Arg, ErrOutOfRange)
		}
		s.YScale = c.Arg
		return fmt.Sprintf("set yscale to %d mV", c.Arg), nil

	case TriggerLevel:
		if s.Running {
			return ReplyInvalid, ErrBusy
		}
		if c.Arg < settings.MinTriggerMillivolts || c.Arg > settings.MaxTriggerMillivolts {
			return "Invalid number to set trigger level to", fmt.Errorf("trigger level %d: %w", c.Arg, ErrOutOfRange)
		}
		s.TriggerLevel = settings.LevelFromMillivolts(c.Arg)
		return fmt.Sprintf("set trigger level to %d mV", c.Arg), nil

	case Start:
		s.Running = true
		return "Started the scope", nil

	case Stop:
		s.Running = false
		return "Stopped the scope", nil
	}
	return ReplyInvalid, ErrUnknownCommand
}
