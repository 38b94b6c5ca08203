// Package app wires the HAL, the kernel and the scope tasks together.
package app

import (
	"errors"

	"tinyscope/hal"
	"tinyscope/kernel"
	"tinyscope/proto"
	"tinyscope/scope/acquire"
	"tinyscope/scope/frame"
	"tinyscope/scope/sched"
	"tinyscope/scope/settings"
	"tinyscope/services/logger"
	serialsvc "tinyscope/services/serial"
	"tinyscope/tasks/acquisition"
	"tinyscope/tasks/console"
	"tinyscope/tasks/display"
)

// DefaultMaxSteps caps kernel task steps per System.Step.
const DefaultMaxSteps = 64

// ErrHalted is returned by Step once a task has panicked and the system is
// configured to stop.
var ErrHalted = errors.New("app: halted after task panic")

// Config selects the power-on settings and pipeline tuning.
type Config struct {
	Settings settings.Scope
	Sched    sched.Config
	Display  display.Config
	// Sinks receive every drawn frame.
	Sinks []display.Sink
	// MaxSteps caps kernel steps per Step call.
	MaxSteps int
	// HaltOnPanic makes Step fail after a task panic instead of leaving
	// the panic screen up.
	HaltOnPanic bool
}

// DefaultConfig is the firmware power-on state.
func DefaultConfig() Config {
	return Config{Settings: settings.Defaults()}
}

// System is a running scope.
type System struct {
	h   hal.HAL
	k   *kernel.Kernel
	cfg Config

	store   *settings.Store
	frame   *frame.Frame
	capture *acquire.Capture

	displayCap kernel.Capability

	acq     *acquisition.Task
	disp    *display.Task
	console *console.Task
}

// New builds the kernel and registers every task. Nothing runs until Step.
func New(h hal.HAL, cfg Config) (*System, error) {
	if h == nil {
		return nil, errors.New("app: nil HAL")
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}

	s := &System{
		h:       h,
		k:       kernel.New(),
		cfg:     cfg,
		store:   settings.NewStore(cfg.Settings),
		frame:   &frame.Frame{},
		capture: acquire.NewCapture(acquire.BufferLen),
	}
	s.installPanicHandler()

	k := s.k
	logEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	serialEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	consoleEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	displayEP := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	logCap := logEP.Restrict(kernel.RightSend)
	s.displayCap = displayEP.Restrict(kernel.RightSend)

	var fb hal.Framebuffer
	if d := h.Display(); d != nil {
		fb = d.Framebuffer()
	}
	var kbd hal.Keyboard
	if in := h.Input(); in != nil {
		kbd = in.Keyboard()
	}
	analog := h.Analog()

	s.acq = acquisition.New(analog, s.capture, s.store, s.frame, cfg.Sched, s.displayCap, logCap)
	s.disp = display.New(fb, s.frame, s.store, analog, displayEP.Restrict(kernel.RightRecv), logCap, cfg.Display, cfg.Sinks...)
	s.console = console.New(s.store, kbd, analog, serialEP.Restrict(kernel.RightSend), consoleEP, s.displayCap, logCap)

	tasks := []kernel.Task{
		logger.New(h.Logger(), logEP.Restrict(kernel.RightRecv)),
		serialsvc.New(h.Serial(), serialEP.Restrict(kernel.RightRecv)),
		s.acq,
		s.disp,
		s.console,
	}
	for _, t := range tasks {
		if _, err := k.AddTask(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Factory adapts New to the host runners.
func Factory(cfg Config, ready func(*System)) hal.AppFactory {
	return func(h hal.HAL) (func() error, error) {
		s, err := New(h, cfg)
		if err != nil {
			return nil, err
		}
		if ready != nil {
			ready(s)
		}
		return s.Step, nil
	}
}

// Step moves the kernel to the newest tick and runs tasks until none is
// runnable or the step cap is reached.
func (s *System) Step() error {
	if s.k.InPanicMode() {
		if s.cfg.HaltOnPanic {
			return ErrHalted
		}
		return nil
	}
	s.drainTicks()
	for i := 0; i < s.cfg.MaxSteps; i++ {
		if !s.k.Step() {
			break
		}
	}
	if s.cfg.HaltOnPanic && s.k.InPanicMode() {
		return ErrHalted
	}
	return nil
}

func (s *System) drainTicks() {
	t := s.h.Time()
	if t == nil {
		return
	}
	ch := t.Ticks()
	for {
		select {
		case seq := <-ch:
			s.k.TickTo(seq)
		default:
			return
		}
	}
}

// Run steps the system forever, sleeping on the tick stream between
// steps. It is the board entry point.
func Run(h hal.HAL, cfg Config) {
	s, err := New(h, cfg)
	if err != nil {
		if l := h.Logger(); l != nil {
			l.WriteLineString(err.Error())
		}
		select {}
	}
	ticks := h.Time().Ticks()
	for seq := range ticks {
		s.k.TickTo(seq)
		if s.Step() != nil {
			break
		}
	}
	select {}
}

// NotifySettings tells the renderer that settings changed outside the
// kernel. Safe from any goroutine.
func (s *System) NotifySettings() {
	s.k.Post(s.displayCap, uint16(proto.MsgSettingsChanged), proto.SettingsChangedPayload(s.store.Generation()))
}

func (s *System) Store() *settings.Store         { return s.store }
func (s *System) Frame() *frame.Frame            { return s.frame }
func (s *System) Kernel() *kernel.Kernel         { return s.k }
func (s *System) Display() *display.Task         { return s.disp }
func (s *System) Acquisition() *acquisition.Task { return s.acq }
