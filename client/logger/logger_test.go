package logger

import (
	"strings"
	"testing"

	"tinyscope/kernel"
	"tinyscope/proto"
)

type stepFunc func(*kernel.Context)

func (f stepFunc) Step(ctx *kernel.Context) { f(ctx) }

func TestLogTruncatesAndSends(t *testing.T) {
	k := kernel.New()
	ep := k.NewEndpoint(kernel.RightSend | kernel.RightRecv)
	var results []kernel.SendResult
	var got []kernel.Message

	k.AddTask(stepFunc(func(ctx *kernel.Context) {
		results = append(results,
			Log(ctx, ep.Restrict(kernel.RightSend), strings.Repeat("x", kernel.MaxMessageBytes+20)),
			Logf(ctx, ep.Restrict(kernel.RightSend), "acq: %d dropped", 3),
			Log(ctx, kernel.Capability{}, "nowhere"),
		)
		for {
			msg, ok := ctx.Recv(ep)
			if !ok {
				break
			}
			got = append(got, msg)
		}
		ctx.BlockOnTick()
	}))
	k.Step()

	want := []kernel.SendResult{kernel.SendOK, kernel.SendOK, kernel.SendErrInvalidToCap}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("result %d = %s, want %s", i, results[i], want[i])
		}
	}
	if len(got) != 2 || proto.Kind(got[0].Kind) != proto.MsgLogLine {
		t.Fatalf("received %d messages", len(got))
	}
	if n := len(got[0].Payload()); n != kernel.MaxMessageBytes {
		t.Fatalf("payload len = %d, want %d", n, kernel.MaxMessageBytes)
	}
	if s := string(got[1].Payload()); s != "acq: 3 dropped" {
		t.Fatalf("payload = %q", s)
	}
	if Log(nil, ep, "x") != kernel.SendErrInvalidFromCap {
		t.Fatal("Log(nil ctx) sent")
	}
}
