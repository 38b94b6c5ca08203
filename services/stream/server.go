//go:build !tinygo

// Package stream serves the scope over HTTP: a small JSON API for settings
// and commands, and a websocket feed of finished frames.
package stream

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"tinyscope/hal"
	"tinyscope/scope/command"
	"tinyscope/scope/settings"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxClientBytes = 512
)

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Line string `json:"line"`
}

// CommandResponse answers a command. Reply is the console text; Error is
// set when the command was refused.
type CommandResponse struct {
	Reply    string        `json:"reply"`
	Error    string        `json:"error,omitempty"`
	Settings *SettingsView `json:"settings"`
}

// Server is the HTTP front end.
type Server struct {
	hub    *Hub
	store  *settings.Store
	proc   *command.Processor
	notify func()
	log    hal.Logger

	upgrader websocket.Upgrader
}

// NewServer returns a server applying commands to st. notify runs after
// every accepted command; it must be safe to call from any goroutine.
func NewServer(st *settings.Store, hub *Hub, notify func(), log hal.Logger) *Server {
	if hub == nil {
		hub = NewHub()
	}
	return &Server{
		hub:    hub,
		store:  st,
		proc:   command.NewProcessor(st),
		notify: notify,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16384,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/settings", s.getSettings)
		r.Post("/command", s.postCommand)
		r.Get("/frame", s.getFrame)
	})
	r.Get("/ws", s.serveWS)
	return r
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, View(s.store.Get()))
}

func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.hub.Last()
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, CommandResponse{Error: "no frame yet"})
		return
	}
	render.JSON(w, r, snap)
}

func (s *Server) postCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, CommandResponse{Reply: command.ReplyInvalid, Error: err.Error()})
		return
	}
	resp, err := s.execute(req.Line)
	if err != nil {
		render.Status(r, statusFor(err))
	}
	render.JSON(w, r, resp)
}

// execute runs one command line and fans the change out.
func (s *Server) execute(line string) (CommandResponse, error) {
	reply, err := s.proc.Execute(line)
	cur := s.store.Get()
	resp := CommandResponse{Reply: reply, Settings: View(cur)}
	if err != nil {
		resp.Error = err.Error()
		return resp, err
	}
	s.logf("stream: %q: %s", line, reply)
	if s.notify != nil {
		s.notify()
	}
	s.hub.PublishSettings(cur)
	return resp, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, command.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, command.ErrOutOfRange), errors.Is(err, command.ErrUnknownCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logf("stream: upgrade: %v", err)
		return
	}
	c := s.hub.register(Message{Type: TypeSettings, Settings: View(s.store.Get())})
	go s.writePump(conn, c)
	s.readPump(conn, c)
}

// readPump handles command messages from the client until the connection
// drops. Replies go through the client's queue so the write pump stays the
// only writer.
func (s *Server) readPump(conn *websocket.Conn, c *client) {
	defer s.hub.unregister(c)

	conn.SetReadLimit(maxClientBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var in Message
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Line == "" {
			continue
		}
		resp, err := s.execute(in.Line)
		out := Message{Type: TypeReply, Reply: resp.Reply, Settings: resp.Settings}
		if err != nil {
			out.Error = err.Error()
		}
		select {
		case c.send <- out:
		default:
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (s *Server) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.WriteLineString(fmt.Sprintf(format, args...))
	}
}
