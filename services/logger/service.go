package logger

import (
	"tinyscope/hal"
	"tinyscope/kernel"
	"tinyscope/proto"
)

// Service writes MsgLogLine payloads to the HAL logger.
type Service struct {
	log hal.Logger
	ep  kernel.Capability

	dropped uint64
}

func New(log hal.Logger, ep kernel.Capability) *Service {
	return &Service{log: log, ep: ep}
}

func (s *Service) Step(ctx *kernel.Context) {
	for {
		msg, ok := ctx.Recv(s.ep)
		if !ok {
			break
		}
		if s.log == nil || proto.Kind(msg.Kind) != proto.MsgLogLine {
			s.dropped++
			continue
		}
		s.log.WriteLineBytes(msg.Payload())
	}
	ctx.BlockOn(s.ep)
}

// Dropped counts messages that were not written.
func (s *Service) Dropped() uint64 { return s.dropped }
