package proto

import (
	"strings"
	"testing"
)

func TestFrameReadyPayload(t *testing.T) {
	in := FrameReady{Seq: 1<<40 + 3, Freq: [2]uint32{231, 0}}
	b := FrameReadyPayload(in)
	if b[0] != 3 {
		t.Fatalf("payload not little-endian: % x", b)
	}
	got, ok := DecodeFrameReadyPayload(b)
	if !ok || got != in {
		t.Fatalf("DecodeFrameReadyPayload() = %+v, %v, want %+v", got, ok, in)
	}
	if _, ok := DecodeFrameReadyPayload(b[:15]); ok {
		t.Fatal("short payload decoded")
	}
}

func TestSettingsChangedPayload(t *testing.T) {
	got, ok := DecodeSettingsChangedPayload(SettingsChangedPayload(42))
	if !ok || got != 42 {
		t.Fatalf("DecodeSettingsChangedPayload() = %d, %v, want 42", got, ok)
	}
	if _, ok := DecodeSettingsChangedPayload(nil); ok {
		t.Fatal("empty payload decoded")
	}
}

func TestErrorPayload(t *testing.T) {
	in := Error{Code: ErrBusy, Ref: MsgSerialWrite, Detail: "x"}
	got, ok := DecodeError(in.Payload())
	if !ok || got != in {
		t.Fatalf("DecodeError() = %+v, %v, want %+v", got, ok, in)
	}
	if _, ok := DecodeError([]byte{1}); ok {
		t.Fatal("short payload decoded")
	}
	long := Error{Code: ErrInternal, Ref: MsgSerialWrite, Detail: strings.Repeat("e", 200)}
	if n := len(long.Payload()); n != 128 {
		t.Fatalf("len(Payload()) = %d, want 128", n)
	}
}

func TestLogLinePayloadCopies(t *testing.T) {
	src := []byte("adc: start")
	p := LogLinePayload(src)
	src[0] = 'X'
	if string(p) != "adc: start" {
		t.Fatalf("LogLinePayload() aliases its input: %q", p)
	}
	if LogLinePayload(nil) != nil {
		t.Fatal("LogLinePayload(nil) != nil")
	}
}
