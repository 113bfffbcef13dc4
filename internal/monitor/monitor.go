// Package monitor exposes a live view of plan execution over HTTP and
// WebSocket. It is a pure observer: it subscribes to the event bus like
// any other consumer and can be attached or dropped without touching
// execution semantics.
//
// The channel carries no authentication and is meant for local or
// trusted-network use only.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kerem/stepchain/internal/bus"
)

// RunState is the aggregate picture pushed to newly connected clients.
// It is mutated only by the collector goroutine; handlers read copies.
type RunState struct {
	RunID       string     `json:"run_id,omitempty"`
	Task        string     `json:"task,omitempty"`
	Status      string     `json:"status"`
	CurrentStep int        `json:"current_step"`
	TotalSteps  int        `json:"total_steps"`
	Steps       []string   `json:"steps,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

// Server multiplexes bus events to any number of WebSocket clients and
// serves a JSON snapshot of the current state.
type Server struct {
	bus      *bus.Bus
	addr     string
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	state RunState
}

func NewServer(b *bus.Bus, port int) *Server {
	return &Server{
		bus:  b,
		addr: fmt.Sprintf(":%d", port),
		upgrader: websocket.Upgrader{
			// Local/trusted network only; the dashboard page may be
			// served from anywhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		state: RunState{Status: "idle"},
	}
}

// Start runs the collector and the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	sub := s.bus.Subscribe()
	go s.collect(ctx, sub)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)

	srv := &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.bus.Unsubscribe(sub)
	}()

	log.Printf("monitor listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler returns the HTTP handler without starting a listener. Used
// by tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// collect is the single writer of the aggregate state.
func (s *Server) collect(ctx context.Context, sub *bus.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			s.apply(evt)
		}
	}
}

func (s *Server) apply(evt bus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, _ := evt.Data.(map[string]any)
	switch evt.Type {
	case bus.EventPlanSet:
		ts := evt.Timestamp
		s.state = RunState{
			RunID:      evt.RunID,
			Status:     "planning",
			TotalSteps: intField(data, "total_steps"),
			StartTime:  &ts,
		}
		if task, ok := data["task"].(string); ok {
			s.state.Task = task
		}
		if steps, ok := data["steps"].([]string); ok {
			s.state.Steps = steps
		}
	case bus.EventRunStarted:
		s.state.Status = "running"
	case bus.EventStepStarted:
		s.state.CurrentStep = intField(data, "step")
	case bus.EventRunCompleted:
		ts := evt.Timestamp
		s.state.Status = "completed"
		s.state.EndTime = &ts
	}
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Snapshot returns a copy of the aggregate state.
func (s *Server) Snapshot() RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	state.Steps = append([]string(nil), s.state.Steps...)
	return state
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Snapshot())
}

// envelope is the wire format pushed to WebSocket clients. Bus events
// pass through unchanged; the initial state snapshot reuses it.
type envelope struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// New client: current aggregate state first, then the retained log
	// history, then the live stream.
	if err := conn.WriteJSON(envelope{
		Type:      "state_update",
		Data:      s.Snapshot(),
		Timestamp: time.Now(),
	}); err != nil {
		return
	}
	for _, evt := range s.bus.Replay() {
		if err := writeEvent(conn, evt); err != nil {
			return
		}
	}

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	// Discard client frames; their only purpose is to surface the
	// close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			// A broken client only loses its own subscription.
			if err := writeEvent(conn, evt); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, evt bus.Event) error {
	return conn.WriteJSON(envelope{
		Type:      string(evt.Type),
		RunID:     evt.RunID,
		Data:      evt.Data,
		Timestamp: evt.Timestamp,
	})
}
