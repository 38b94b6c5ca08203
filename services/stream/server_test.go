//go:build !tinygo

package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"periph.io/x/conn/v3/physic"

	"tinyscope/scope/acquire"
	"tinyscope/scope/frame"
	"tinyscope/scope/settings"
)

func newTestServer(t *testing.T) (*Server, *settings.Store, *atomic.Int32, *httptest.Server) {
	t.Helper()
	st := settings.NewStore(settings.Defaults())
	var notified atomic.Int32
	srv := NewServer(st, nil, func() { notified.Add(1) }, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, st, &notified, ts
}

func postCommand(t *testing.T, ts *httptest.Server, line string) (int, CommandResponse) {
	t.Helper()
	body := strings.NewReader(`{"line":` + quote(line) + `}`)
	res, err := http.Post(ts.URL+"/api/command", "application/json", body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer res.Body.Close()
	var resp CommandResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return res.StatusCode, resp
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGetSettings(t *testing.T) {
	_, _, _, ts := newTestServer(t)
	res, err := http.Get(ts.URL + "/api/settings")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	var v SettingsView
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := SettingsView{
		Mode: "free", Slope: "positive", TriggerChannel: 1,
		TriggerLevelMV: 1612, XScaleUS: 1000, YScaleMV: 1000,
		TriggerLevel: (1612 * physic.MilliVolt).String(),
		XDiv:         "1ms",
		YDiv:         physic.Volt.String(),
	}
	if v != want {
		t.Fatalf("settings = %+v, want %+v", v, want)
	}
}

func TestPostCommand(t *testing.T) {
	_, st, notified, ts := newTestServer(t)

	code, resp := postCommand(t, ts, "set xscale 250")
	if code != http.StatusOK || resp.Reply != "set xscale to 250 us" || resp.Error != "" {
		t.Fatalf("status %d, resp %+v", code, resp)
	}
	if st.Get().XScale != 250 || resp.Settings.XScaleUS != 250 {
		t.Fatalf("XScale not applied: %+v", resp.Settings)
	}
	if notified.Load() != 1 {
		t.Fatalf("notify calls = %d, want 1", notified.Load())
	}

	code, resp = postCommand(t, ts, "set xscale 5")
	if code != http.StatusBadRequest || resp.Reply != "Invalid number to set xScale to" {
		t.Fatalf("status %d, resp %+v", code, resp)
	}

	postCommand(t, ts, "start")
	code, resp = postCommand(t, ts, "set mode trigger")
	if code != http.StatusConflict || resp.Reply != "Error - Invalid input" {
		t.Fatalf("status %d, resp %+v", code, resp)
	}
	if notified.Load() != 2 {
		t.Fatalf("notify calls = %d, want 2", notified.Load())
	}
}

func TestFrameEndpoint(t *testing.T) {
	srv, st, _, ts := newTestServer(t)
	res, err := http.Get(ts.URL + "/api/frame")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status before publish = %d, want 404", res.StatusCode)
	}

	srv.Hub().Publish(frame.Snapshot{Seq: 7, Freq: [acquire.NumChannels]uint32{1000, 250}}, st.Get())
	res, err = http.Get(ts.URL + "/api/frame")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	var snap frame.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Seq != 7 || snap.Freq[acquire.Ch2] != 250 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestWebsocketFeed(t *testing.T) {
	srv, st, _, ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != TypeSettings || msg.Settings == nil || msg.Settings.XScaleUS != 1000 {
		t.Fatalf("first message = %+v", msg)
	}

	srv.Hub().Publish(frame.Snapshot{Seq: 3}, st.Get())
	msg = Message{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != TypeFrame || msg.Frame == nil || msg.Frame.Seq != 3 {
		t.Fatalf("frame message = %+v", msg)
	}

	if err := conn.WriteJSON(Message{Line: "set yscale 500"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// The settings broadcast and the reply both arrive; order is not fixed.
	var gotReply bool
	for i := 0; i < 2; i++ {
		msg = Message{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == TypeReply {
			gotReply = msg.Reply == "set yscale to 500 mV"
		}
	}
	if !gotReply || st.Get().YScale != 500 {
		t.Fatalf("command over websocket not applied")
	}
}
