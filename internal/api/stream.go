package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"

	"tourroute/internal/model"
	"tourroute/internal/opt"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsMessage frames every message on /v1/optimize/ws.
//
// Client: {"type":"optimize","payload":<OptimizeRequest>} or {"type":"ping"}.
// Server: "event" per progress step, then "route" or "error"; "pong" to pings.
type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OptimizeWSHandler runs optimize requests over a WebSocket, streaming each
// strategy's outcome before the final route. Requests on one connection run
// one at a time.
func (s *Server) OptimizeWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	write := func(typ, id string, v any) error {
		var pl json.RawMessage
		if v != nil {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			pl = b
		}
		return conn.WriteJSON(wsMessage{Type: typ, ID: id, Payload: pl})
	}
	fail := func(id string, status int, title, detail string) error {
		return write("error", id, Problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Instance: r.URL.Path})
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "ping":
			if write("pong", msg.ID, nil) != nil {
				return
			}
		case "optimize":
			var req model.OptimizeRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				if fail(msg.ID, http.StatusBadRequest, "Invalid JSON", err.Error()) != nil {
					return
				}
				continue
			}
			ctx := r.Context()
			wps, c, start, err := s.resolve(ctx, &req)
			var route *model.OptimizedRoute
			if err == nil {
				route, err = s.optimize(ctx, wps, c, start, "", func(ev opt.Event) {
					_ = write("event", msg.ID, ev)
				})
			}
			if err != nil {
				status, title := optimizeProblem(err)
				if status >= 500 {
					level.Error(s.Logger).Log("msg", "ws optimize failed", "err", err)
				}
				if fail(msg.ID, status, title, err.Error()) != nil {
					return
				}
				continue
			}
			if write("route", msg.ID, route) != nil {
				return
			}
		default:
			if fail(msg.ID, http.StatusBadRequest, "Unknown message type", msg.Type) != nil {
				return
			}
		}
	}
}
