package proto

import "encoding/binary"

// FrameReady is the MsgFrameReady payload sent by the acquisition task when
// a frame has been fully built.
//
// Layout (little-endian):
//   - u64: frame sequence
//   - u32: channel 1 frequency (Hz)
//   - u32: channel 2 frequency (Hz)
type FrameReady struct {
	Seq  uint64
	Freq [2]uint32
}

const frameReadyLen = 16

func FrameReadyPayload(f FrameReady) []byte {
	buf := make([]byte, frameReadyLen)
	binary.LittleEndian.PutUint64(buf[0:8], f.Seq)
	binary.LittleEndian.PutUint32(buf[8:12], f.Freq[0])
	binary.LittleEndian.PutUint32(buf[12:16], f.Freq[1])
	return buf
}

func DecodeFrameReadyPayload(b []byte) (FrameReady, bool) {
	if len(b) != frameReadyLen {
		return FrameReady{}, false
	}
	return FrameReady{
		Seq: binary.LittleEndian.Uint64(b[0:8]),
		Freq: [2]uint32{
			binary.LittleEndian.Uint32(b[8:12]),
			binary.LittleEndian.Uint32(b[12:16]),
		},
	}, true
}

// SettingsChangedPayload encodes the settings store generation after a
// change (u64, little-endian).
func SettingsChangedPayload(gen uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, gen)
	return buf
}

func DecodeSettingsChangedPayload(b []byte) (uint64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}
