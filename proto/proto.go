// Package proto defines the message kinds exchanged between kernel tasks
// and their little-endian payload layouts.
package proto

// Kind identifies the message type carried in kernel.Message.Kind.
type Kind uint16

const (
	MsgLogLine Kind = iota + 1
	MsgError
	MsgSerialSubscribe
	MsgSerialWrite
	MsgSerialData
	MsgFrameReady
	MsgSettingsChanged
)

func (k Kind) String() string {
	switch k {
	case MsgLogLine:
		return "log_line"
	case MsgError:
		return "error"
	case MsgSerialSubscribe:
		return "serial_subscribe"
	case MsgSerialWrite:
		return "serial_write"
	case MsgSerialData:
		return "serial_data"
	case MsgFrameReady:
		return "frame_ready"
	case MsgSettingsChanged:
		return "settings_changed"
	default:
		return "unknown"
	}
}

// ErrCode is a generic error category for MsgError payloads.
type ErrCode uint16

const (
	ErrUnknown ErrCode = iota
	ErrBadMessage
	ErrBusy
	ErrOverflow
	ErrTooLarge
	ErrInternal
)

func (c ErrCode) String() string {
	switch c {
	case ErrUnknown:
		return "unknown"
	case ErrBadMessage:
		return "bad_message"
	case ErrBusy:
		return "busy"
	case ErrOverflow:
		return "overflow"
	case ErrTooLarge:
		return "too_large"
	case ErrInternal:
		return "internal"
	default:
		return "unknown"
	}
}
