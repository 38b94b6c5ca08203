package proto

import "encoding/binary"

// Error is the MsgError payload: a failed request of kind Ref.
//
// Layout (little-endian):
//   - u16: code
//   - u16: ref kind
//   - bytes: detail, cut to fit one message
type Error struct {
	Code   ErrCode
	Ref    Kind
	Detail string
}

const errorHeader = 4

// maxErrorDetail keeps an encoded Error within a 128-byte kernel message.
const maxErrorDetail = 128 - errorHeader

func (e Error) String() string {
	s := e.Ref.String() + ": " + e.Code.String()
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	return s
}

// Payload encodes e.
func (e Error) Payload() []byte {
	detail := e.Detail
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail]
	}
	buf := make([]byte, errorHeader+len(detail))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(e.Code))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(e.Ref))
	copy(buf[errorHeader:], detail)
	return buf
}

// DecodeError reverses Error.Payload.
func DecodeError(b []byte) (Error, bool) {
	if len(b) < errorHeader {
		return Error{}, false
	}
	return Error{
		Code:   ErrCode(binary.LittleEndian.Uint16(b[0:2])),
		Ref:    Kind(binary.LittleEndian.Uint16(b[2:4])),
		Detail: string(b[errorHeader:]),
	}, true
}
