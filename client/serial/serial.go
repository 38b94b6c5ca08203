package serial

import (
	"tinyscope/kernel"
	"tinyscope/proto"
)

// Subscribe registers rxCap as the receiver of serial data.
func Subscribe(ctx *kernel.Context, serialCap, rxCap kernel.Capability) kernel.SendResult {
	if ctx == nil {
		return kernel.SendErrInvalidFromCap
	}
	return ctx.SendToCap(serialCap, uint16(proto.MsgSerialSubscribe), nil, rxCap)
}

// Write sends bytes to the serial link, split into message-sized chunks.
// It stops at the first chunk that could not be queued.
func Write(ctx *kernel.Context, serialCap kernel.Capability, payload []byte) kernel.SendResult {
	if ctx == nil {
		return kernel.SendErrInvalidFromCap
	}
	res := kernel.SendOK
	for len(payload) > 0 {
		n := len(payload)
		if n > kernel.MaxMessageBytes {
			n = kernel.MaxMessageBytes
		}
		res = ctx.SendTo(serialCap, uint16(proto.MsgSerialWrite), payload[:n])
		if res != kernel.SendOK {
			return res
		}
		payload = payload[n:]
	}
	return res
}

// WriteLine writes s followed by a newline.
func WriteLine(ctx *kernel.Context, serialCap kernel.Capability, s string) kernel.SendResult {
	return Write(ctx, serialCap, append([]byte(s), '\n'))
}
