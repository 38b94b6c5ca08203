// Package console is the operator front end: it reads command lines from
// the serial link, applies them and echoes a reply, and maps keyboard
// shortcuts onto the same commands.
package console

import (
	"errors"

	"tinyscope/client/logger"
	serialclient "tinyscope/client/serial"
	"tinyscope/hal"
	"tinyscope/kernel"
	"tinyscope/proto"
	"tinyscope/scope/acquire"
	"tinyscope/scope/command"
	"tinyscope/scope/settings"
)

// OffsetStep is the raw offset change per PageUp/PageDown press.
const OffsetStep = 50

// TriggerStepMillivolts is the trigger level change per '+' or '-'.
const TriggerStepMillivolts = 100

var (
	xLadder = []int{100, 200, 500, 1000, 2000, 5000, 10000}
	yLadder = []int{500, 1000, 1500, 2000}
)

// Task owns the command line.
type Task struct {
	serialCap  kernel.Capability
	ep         kernel.Capability
	displayCap kernel.Capability
	logCap     kernel.Capability

	kbd    hal.Keyboard
	analog hal.Analog
	store  *settings.Store
	proc   *command.Processor
	asm    command.Assembler

	started bool
	offCh   acquire.Channel

	lines  uint64
	failed uint64
}

// New returns a console task. ep must carry both rights: the send half is
// handed to the serial service on subscribe. kbd and analog may be nil.
func New(st *settings.Store, kbd hal.Keyboard, analog hal.Analog, serialCap, ep, displayCap, logCap kernel.Capability) *Task {
	return &Task{
		serialCap:  serialCap,
		ep:         ep,
		displayCap: displayCap,
		logCap:     logCap,
		kbd:        kbd,
		analog:     analog,
		store:      st,
		proc:       command.NewProcessor(st),
	}
}

func (t *Task) Step(ctx *kernel.Context) {
	if !t.started {
		t.started = true
		if res := serialclient.Subscribe(ctx, t.serialCap, t.ep.Restrict(kernel.RightSend)); res != kernel.SendOK {
			logger.Logf(ctx, t.logCap, "console: subscribe: %s", res)
		}
		serialclient.WriteLine(ctx, t.serialCap, command.Banner)
	}

	for {
		msg, ok := ctx.Recv(t.ep)
		if !ok {
			break
		}
		switch proto.Kind(msg.Kind) {
		case proto.MsgSerialData:
			for _, b := range msg.Payload() {
				if line, ok := t.asm.Feed(b); ok {
					t.execute(ctx, line)
				}
			}
		case proto.MsgError:
			if e, ok := proto.DecodeError(msg.Payload()); ok {
				logger.Log(ctx, t.logCap, "console: "+e.String())
			}
		}
	}

	t.pollKeys(ctx)
	ctx.BlockOnTick()
}

func (t *Task) execute(ctx *kernel.Context, line string) {
	t.lines++
	reply, err := t.proc.Execute(line)
	serialclient.WriteLine(ctx, t.serialCap, reply)
	t.settled(ctx, err)
}

func (t *Task) apply(ctx *kernel.Context, c command.Command) {
	reply, err := t.proc.Apply(c)
	serialclient.WriteLine(ctx, t.serialCap, "> "+c.String())
	serialclient.WriteLine(ctx, t.serialCap, reply)
	t.settled(ctx, err)
}

// settled tells the renderer about a successful change.
func (t *Task) settled(ctx *kernel.Context, err error) {
	if err != nil {
		t.failed++
		if !errors.Is(err, command.ErrUnknownCommand) {
			logger.Logf(ctx, t.logCap, "console: %v", err)
		}
		return
	}
	ctx.SendTo(t.displayCap, uint16(proto.MsgSettingsChanged), proto.SettingsChangedPayload(t.store.Generation()))
}

func (t *Task) pollKeys(ctx *kernel.Context) {
	if t.kbd == nil {
		return
	}
	events := t.kbd.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.kbd = nil
				return
			}
			if ev.Press {
				t.key(ctx, ev)
			}
		default:
			return
		}
	}
}

func (t *Task) key(ctx *kernel.Context, ev hal.KeyEvent) {
	s := t.store.Get()
	switch ev.Code {
	case hal.KeyLeft:
		t.apply(ctx, command.Command{Kind: command.XScale, Arg: ladder(xLadder, s.XScale, -1)})
		return
	case hal.KeyRight:
		t.apply(ctx, command.Command{Kind: command.XScale, Arg: ladder(xLadder, s.XScale, +1)})
		return
	case hal.KeyUp:
		t.apply(ctx, command.Command{Kind: command.YScale, Arg: ladder(yLadder, s.YScale, -1)})
		return
	case hal.KeyDown:
		t.apply(ctx, command.Command{Kind: command.YScale, Arg: ladder(yLadder, s.YScale, +1)})
		return
	case hal.KeyPageUp:
		t.nudgeOffset(ctx, OffsetStep)
		return
	case hal.KeyPageDown:
		t.nudgeOffset(ctx, -OffsetStep)
		return
	}

	switch ev.Rune {
	case ' ':
		if s.Running {
			t.apply(ctx, command.Command{Kind: command.Stop})
		} else {
			t.apply(ctx, command.Command{Kind: command.Start})
		}
	case 'f':
		t.apply(ctx, command.Command{Kind: command.ModeFree})
	case 't':
		t.apply(ctx, command.Command{Kind: command.ModeTrigger})
	case 's':
		if s.Slope == settings.Rising {
			t.apply(ctx, command.Command{Kind: command.SlopeNegative})
		} else {
			t.apply(ctx, command.Command{Kind: command.SlopePositive})
		}
	case '1':
		t.apply(ctx, command.Command{Kind: command.TriggerChannel1})
		t.offCh = acquire.Ch1
	case '2':
		t.apply(ctx, command.Command{Kind: command.TriggerChannel2})
		t.offCh = acquire.Ch2
	case '+', '=':
		t.apply(ctx, command.Command{Kind: command.TriggerLevel, Arg: s.TriggerMillivolts() + TriggerStepMillivolts})
	case '-':
		t.apply(ctx, command.Command{Kind: command.TriggerLevel, Arg: s.TriggerMillivolts() - TriggerStepMillivolts})
	}
}

// nudgeOffset moves the offset of the channel last selected with '1' or
// '2'. Front ends without software offsets ignore it.
func (t *Task) nudgeOffset(ctx *kernel.Context, delta int) {
	setter, ok := t.analog.(hal.OffsetSetter)
	if !ok {
		return
	}
	raw := int(t.analog.Offset(t.offCh)) + delta
	if raw < 0 {
		raw = 0
	}
	setter.SetOffset(t.offCh, uint16(raw))
	ctx.SendTo(t.displayCap, uint16(proto.MsgSettingsChanged), proto.SettingsChangedPayload(t.store.Generation()))
}

// ladder returns the entry after (dir > 0) or before (dir < 0) cur. At
// either end cur is returned unchanged.
func ladder(steps []int, cur, dir int) int {
	if dir > 0 {
		for _, v := range steps {
			if v > cur {
				return v
			}
		}
		return cur
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i] < cur {
			return steps[i]
		}
	}
	return cur
}

// Lines counts command lines received over serial.
func (t *Task) Lines() uint64 { return t.lines }

// Failed counts commands that were refused.
func (t *Task) Failed() uint64 { return t.failed }
