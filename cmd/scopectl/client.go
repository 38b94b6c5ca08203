package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tinyscope/services/stream"
)

// client talks to a tinyscope HTTP API.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

// command posts one line. Refused commands return the response together
// with an error carrying the reason.
func (c *client) command(line string) (stream.CommandResponse, error) {
	var resp stream.CommandResponse
	body, err := json.Marshal(stream.CommandRequest{Line: line})
	if err != nil {
		return resp, err
	}
	res, err := c.http.Post(c.base+"/api/command", "application/json", bytes.NewReader(body))
	if err != nil {
		return resp, fmt.Errorf("could not send command: %w", err)
	}
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("could not decode reply (status %d): %w", res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK {
		return resp, fmt.Errorf("refused (%s): %s", res.Status, resp.Error)
	}
	return resp, nil
}

func (c *client) settings() (stream.SettingsView, error) {
	var v stream.SettingsView
	res, err := c.http.Get(c.base + "/api/settings")
	if err != nil {
		return v, fmt.Errorf("could not get settings: %w", err)
	}
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		return v, fmt.Errorf("could not decode settings: %w", err)
	}
	return v, nil
}

// watch streams websocket messages to fn until ctx ends, fn fails or the
// server closes the connection.
func (c *client) watch(ctx context.Context, fn func(stream.Message) error) error {
	u, err := url.Parse(c.base)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("could not dial %s: %w", u, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var msg stream.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

// summary renders a stream message as one line.
func summary(msg stream.Message) string {
	switch msg.Type {
	case stream.TypeFrame:
		if msg.Frame == nil {
			return "frame"
		}
		return fmt.Sprintf("frame %d: ch1 %d Hz, ch2 %d Hz", msg.Frame.Seq, msg.Frame.Freq[0], msg.Frame.Freq[1])
	case stream.TypeSettings, stream.TypeReply:
		s := msg.Settings
		if s == nil {
			return msg.Type
		}
		state := "stopped"
		if s.Running {
			state = "running"
		}
		line := fmt.Sprintf("%s %s, %s slope on ch%d at %d mV, %d us/div, %d mV/div",
			state, s.Mode, s.Slope, s.TriggerChannel, s.TriggerLevelMV, s.XScaleUS, s.YScaleMV)
		if msg.Type == stream.TypeReply {
			line = msg.Reply + " | " + line
		}
		return line
	default:
		return msg.Type
	}
}
