package serial

import (
	"tinyscope/hal"
	"tinyscope/kernel"
	"tinyscope/proto"
)

// Service routes bytes between the HAL serial link and one subscriber.
//
// Requests (MsgSerialSubscribe with the subscriber's endpoint in Cap,
// MsgSerialWrite with bytes to send) arrive on ep. Received bytes go to the
// subscriber as MsgSerialData. The link is polled once per tick.
type Service struct {
	serial hal.Serial
	ep     kernel.Capability

	rxCap   kernel.Capability
	pending []byte
	buf     [kernel.MaxMessageBytes]byte
}

// New creates a serial service.
func New(serial hal.Serial, ep kernel.Capability) *Service {
	return &Service{serial: serial, ep: ep}
}

func (s *Service) Step(ctx *kernel.Context) {
	for {
		msg, ok := ctx.Recv(s.ep)
		if !ok {
			break
		}
		s.handle(ctx, msg)
	}
	s.forward(ctx)
	ctx.BlockOnTick()
}

func (s *Service) handle(ctx *kernel.Context, msg kernel.Message) {
	switch proto.Kind(msg.Kind) {
	case proto.MsgSerialSubscribe:
		s.rxCap = msg.Cap
	case proto.MsgSerialWrite:
		if s.serial == nil || msg.Len == 0 {
			return
		}
		if _, err := s.serial.Write(msg.Payload()); err != nil && s.rxCap.Valid() {
			ctx.SendTo(s.rxCap, uint16(proto.MsgError),
				proto.Error{Code: proto.ErrInternal, Ref: proto.MsgSerialWrite, Detail: err.Error()}.Payload())
		}
	}
}

// forward delivers received bytes. Bytes that do not fit the subscriber's
// queue wait for the next tick; without a subscriber they are discarded.
func (s *Service) forward(ctx *kernel.Context) {
	if s.serial == nil {
		return
	}
	if len(s.pending) == 0 {
		n, _ := s.serial.Read(s.buf[:])
		if n == 0 {
			return
		}
		s.pending = s.buf[:n]
	}
	if !s.rxCap.Valid() {
		s.pending = nil
		return
	}
	if ctx.SendTo(s.rxCap, uint16(proto.MsgSerialData), s.pending) == kernel.SendOK {
		s.pending = nil
	}
}
