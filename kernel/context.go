package kernel

// Context provides task-local access to kernel operations for one Step.
type Context struct {
	k      *Kernel
	taskID TaskID

	blocked     bool
	blockOnTick bool
	blockOn     Endpoint
	tickSeen    uint64
}

// TaskID returns the current task ID.
func (c *Context) TaskID() TaskID { return c.taskID }

// Recv reads one message from the capability endpoint without blocking.
func (c *Context) Recv(epCap Capability) (Message, bool) {
	if c.k == nil || !epCap.Valid() || !epCap.canRecv() {
		return Message{}, false
	}
	return c.k.recv(epCap.ep)
}

// BlockOn parks the task after this step until a message arrives on epCap.
// If one is already queued the task stays runnable.
func (c *Context) BlockOn(epCap Capability) {
	if !epCap.Valid() || !epCap.canRecv() {
		return
	}
	c.blocked = true
	c.blockOnTick = false
	c.blockOn = epCap.ep
}

// BlockOnTick parks the task after this step until the tick counter moves
// past its value at the time of the call.
func (c *Context) BlockOnTick() {
	if c.k == nil {
		return
	}
	c.blocked = true
	c.blockOnTick = true
	c.tickSeen = c.k.NowTick()
}

// Send sends a message to the capability endpoint.
func (c *Context) Send(fromCap, toCap Capability, kind uint16, payload []byte) SendResult {
	return c.SendCap(fromCap, toCap, kind, payload, Capability{})
}

// SendCap sends a message and transfers an optional capability.
func (c *Context) SendCap(fromCap, toCap Capability, kind uint16, payload []byte, xfer Capability) SendResult {
	if !fromCap.Valid() {
		return SendErrInvalidFromCap
	}
	if !fromCap.canSend() {
		return SendErrFromNoSendRight
	}
	return c.sendFrom(fromCap.ep, toCap, kind, payload, xfer)
}

// SendTo sends a message with an unknown (0) From field.
func (c *Context) SendTo(toCap Capability, kind uint16, payload []byte) SendResult {
	return c.sendFrom(0, toCap, kind, payload, Capability{})
}

// SendToCap is SendTo with a transferred capability.
func (c *Context) SendToCap(toCap Capability, kind uint16, payload []byte, xfer Capability) SendResult {
	return c.sendFrom(0, toCap, kind, payload, xfer)
}

func (c *Context) sendFrom(from Endpoint, toCap Capability, kind uint16, payload []byte, xfer Capability) SendResult {
	if !toCap.Valid() {
		return SendErrInvalidToCap
	}
	if !toCap.canSend() {
		return SendErrToNoSendRight
	}
	if c.k == nil {
		return SendErrNoEndpoint
	}
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	return c.k.sendLocked(from, toCap.ep, kind, payload, xfer)
}

// NewEndpoint allocates a new endpoint and returns a capability for it.
func (c *Context) NewEndpoint(rights Rights) Capability {
	if c.k == nil {
		return Capability{}
	}
	return c.k.NewEndpoint(rights)
}

// NowTick returns the current tick counter.
func (c *Context) NowTick() uint64 {
	if c.k == nil {
		return 0
	}
	return c.k.NowTick()
}
