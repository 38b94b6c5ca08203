// Package kernel is a small cooperative scheduler with capability-guarded
// message endpoints.
//
// Tasks never block the caller: Step runs one task step and returns. A task
// that has nothing to do parks itself on an endpoint (woken by the next
// message) or on the tick (woken by the next Tick). All kernel state is
// guarded by one mutex so goroutines outside the scheduler may Post.
package kernel

import (
	"fmt"
	"sync"
)

const (
	maxTasks     = 32
	maxEndpoints = 32
	mailboxSlots = 16
)

type TaskID uint8

// Rights define which operations are allowed for a capability.
type Rights uint8

const (
	RightSend Rights = 1 << iota
	RightRecv
)

// Endpoint identifies an IPC destination.
type Endpoint uint8

// Capability grants access to an IPC endpoint.
//
// It is opaque (no exported fields) and may be transferred via IPC.
type Capability struct {
	ep     Endpoint
	rights Rights
}

func (c Capability) Valid() bool { return c.rights != 0 }

func (c Capability) canSend() bool { return c.rights&RightSend != 0 }
func (c Capability) canRecv() bool { return c.rights&RightRecv != 0 }

// Restrict returns a capability with a reduced set of rights.
func (c Capability) Restrict(rights Rights) Capability {
	r := c.rights & rights
	if r == 0 {
		return Capability{}
	}
	return Capability{ep: c.ep, rights: r}
}

// MaxMessageBytes is the maximum payload size for IPC messages.
const MaxMessageBytes = 128

// Message is a fixed-size IPC envelope.
type Message struct {
	From Endpoint
	To   Endpoint
	Kind uint16
	Len  uint16
	Data [MaxMessageBytes]byte
	Cap  Capability
}

// Payload returns the valid part of Data.
func (m *Message) Payload() []byte {
	n := int(m.Len)
	if n > MaxMessageBytes {
		n = MaxMessageBytes
	}
	return m.Data[:n]
}

// SendResult describes the outcome of a send attempt.
type SendResult uint8

const (
	SendOK SendResult = iota
	SendErrInvalidFromCap
	SendErrInvalidToCap
	SendErrFromNoSendRight
	SendErrToNoSendRight
	SendErrNoEndpoint
	SendErrPayloadTooLarge
	SendErrQueueFull
)

func (r SendResult) String() string {
	switch r {
	case SendOK:
		return "ok"
	case SendErrInvalidFromCap:
		return "invalid from capability"
	case SendErrInvalidToCap:
		return "invalid to capability"
	case SendErrFromNoSendRight:
		return "from capability has no send right"
	case SendErrToNoSendRight:
		return "to capability has no send right"
	case SendErrNoEndpoint:
		return "no such endpoint"
	case SendErrPayloadTooLarge:
		return "payload too large"
	case SendErrQueueFull:
		return "queue full"
	default:
		return "unknown"
	}
}

// Err converts r into an error, nil for SendOK.
func (r SendResult) Err() error {
	if r == SendOK {
		return nil
	}
	return fmt.Errorf("kernel send: %s", r)
}

// Task is a cooperative unit of execution.
type Task interface {
	Step(*Context)
}

type endpointState struct {
	q        mailbox
	waitMask uint32
}

type taskState struct {
	task     Task
	runnable bool
	dead     bool
}

// Kernel is a minimal cooperative scheduler plus IPC router.
type Kernel struct {
	mu sync.Mutex

	endpoints     [maxEndpoints]endpointState
	endpointCount Endpoint

	tasks     [maxTasks]taskState
	taskCount TaskID

	rr TaskID

	tick         uint64
	tickWaitMask uint32

	panicked bool
	panicFn  func(PanicInfo)
}

// New creates a kernel instance.
func New() *Kernel {
	return &Kernel{}
}

// NewEndpoint allocates a new endpoint and returns a capability for it. It
// returns an invalid capability once the endpoint table is full.
func (k *Kernel) NewEndpoint(rights Rights) Capability {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.newEndpointLocked(rights)
}

func (k *Kernel) newEndpointLocked(rights Rights) Capability {
	if k.endpointCount >= maxEndpoints || rights == 0 {
		return Capability{}
	}
	ep := k.endpointCount
	k.endpointCount++
	return Capability{ep: ep, rights: rights}
}

// AddTask registers a task and returns its ID.
func (k *Kernel) AddTask(t Task) (TaskID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.taskCount >= maxTasks {
		return 0, fmt.Errorf("kernel: task table full (%d)", maxTasks)
	}
	id := k.taskCount
	k.taskCount++
	k.tasks[id] = taskState{task: t, runnable: true}
	return id, nil
}

// Step runs at most one runnable task step, round-robin. It reports whether
// a task ran.
//
// A task that panics is marked dead and the panic is routed to the
// installed panic handler.
func (k *Kernel) Step() bool {
	k.mu.Lock()
	id, t, ok := k.nextLocked()
	k.mu.Unlock()
	if !ok {
		return false
	}

	ctx := &Context{k: k, taskID: id}
	if !k.runTask(t, ctx) {
		k.mu.Lock()
		k.tasks[id].dead = true
		k.tasks[id].runnable = false
		k.mu.Unlock()
		return true
	}

	if ctx.blocked {
		k.mu.Lock()
		k.parkLocked(id, ctx)
		k.mu.Unlock()
	}
	return true
}

func (k *Kernel) nextLocked() (TaskID, Task, bool) {
	for i := TaskID(0); i < k.taskCount; i++ {
		id := (k.rr + i) % k.taskCount
		st := &k.tasks[id]
		if st.task == nil || !st.runnable || st.dead {
			continue
		}
		k.rr = (id + 1) % k.taskCount
		return id, st.task, true
	}
	return 0, nil, false
}

func (k *Kernel) runTask(t Task, ctx *Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			k.triggerPanic(PanicInfo{TaskID: ctx.taskID, Value: r})
			ok = false
		}
	}()
	t.Step(ctx)
	return true
}

// parkLocked blocks id unless the thing it waits for already happened
// while it was running.
func (k *Kernel) parkLocked(id TaskID, ctx *Context) {
	bit := uint32(1) << id
	if ctx.blockOnTick {
		if k.tick != ctx.tickSeen {
			return
		}
		k.tasks[id].runnable = false
		k.tickWaitMask |= bit
		return
	}
	if ctx.blockOn >= k.endpointCount {
		return
	}
	ep := &k.endpoints[ctx.blockOn]
	if ep.q.len() > 0 {
		return
	}
	k.tasks[id].runnable = false
	ep.waitMask |= bit
}

// Tick advances the tick counter by one and wakes tasks blocked via
// Context.BlockOnTick.
func (k *Kernel) Tick() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tickToLocked(k.tick + 1)
}

// TickTo moves the tick counter forward to seq. Older values are ignored.
func (k *Kernel) TickTo(seq uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tickToLocked(seq)
}

func (k *Kernel) tickToLocked(seq uint64) {
	if seq <= k.tick {
		return
	}
	k.tick = seq
	k.wakeLocked(&k.tickWaitMask)
}

// NowTick returns the current tick counter.
func (k *Kernel) NowTick() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tick
}

// Runnable reports whether any task would run on the next Step.
func (k *Kernel) Runnable() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	for id := TaskID(0); id < k.taskCount; id++ {
		if st := k.tasks[id]; st.runnable && !st.dead {
			return true
		}
	}
	return false
}

// Post delivers a message from outside any task. It is safe to call from
// any goroutine. The message From field is 0.
func (k *Kernel) Post(toCap Capability, kind uint16, payload []byte) SendResult {
	if !toCap.Valid() {
		return SendErrInvalidToCap
	}
	if !toCap.canSend() {
		return SendErrToNoSendRight
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sendLocked(0, toCap.ep, kind, payload, Capability{})
}

func (k *Kernel) wakeLocked(mask *uint32) {
	wait := *mask
	if wait == 0 {
		return
	}
	for tid := TaskID(0); tid < k.taskCount; tid++ {
		if wait&(1<<tid) == 0 {
			continue
		}
		if !k.tasks[tid].dead {
			k.tasks[tid].runnable = true
		}
	}
	*mask = 0
}

func (k *Kernel) sendLocked(from, to Endpoint, kind uint16, payload []byte, xfer Capability) SendResult {
	if to >= k.endpointCount {
		return SendErrNoEndpoint
	}
	if len(payload) > MaxMessageBytes {
		return SendErrPayloadTooLarge
	}

	var msg Message
	msg.From = from
	msg.To = to
	msg.Kind = kind
	msg.Len = uint16(len(payload))
	copy(msg.Data[:], payload)
	msg.Cap = xfer

	ep := &k.endpoints[to]
	if !ep.q.push(msg) {
		return SendErrQueueFull
	}
	k.wakeLocked(&ep.waitMask)
	return SendOK
}

func (k *Kernel) recv(to Endpoint) (Message, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if to >= k.endpointCount {
		return Message{}, false
	}
	return k.endpoints[to].q.pop()
}
