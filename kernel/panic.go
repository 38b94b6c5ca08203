package kernel

// PanicInfo describes a task panic recovered by Step.
type PanicInfo struct {
	TaskID TaskID
	Value  any
	Stack  []byte
}

// SetPanicHandler installs the handler invoked for the first task panic.
// The handler runs on the goroutine calling Step and must not panic.
func (k *Kernel) SetPanicHandler(fn func(PanicInfo)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.panicFn = fn
}

// InPanicMode reports whether a task has panicked.
func (k *Kernel) InPanicMode() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.panicked
}

func (k *Kernel) triggerPanic(info PanicInfo) {
	k.mu.Lock()
	first := !k.panicked
	k.panicked = true
	fn := k.panicFn
	k.mu.Unlock()
	if !first || fn == nil {
		return
	}
	info.Stack = captureStack()
	fn(info)
}
