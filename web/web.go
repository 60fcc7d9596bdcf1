// Package web serves a live SSE view of decoded events, for an operator
// watching traffic in a browser instead of tailing the JSONL sinks.
//
// Adapted from the teacher's web/web.go: the SSE plumbing (Subscribe,
// flush-per-event, Access-Control-Allow-Origin) is kept as-is, but the
// EXPLAIN endpoint and embedded static UI are dropped — EXPLAIN has no
// meaning for a passive sniffer with no SQL connection of its own, and
// there's no bundled frontend asset in this tree to embed.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tapline/mysqlwire/broker"
	"github.com/tapline/mysqlwire/event"
)

// Server serves the live event stream over HTTP.
type Server struct {
	httpServer *http.Server
	broker     *broker.Broker
}

// New creates a web Server backed by b.
func New(b *broker.Broker) *Server {
	s := &Server{broker: b}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve starts the HTTP server on lis.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type eventJSON struct {
	TS      string   `json:"ts"`
	Src     string   `json:"src"`
	Dst     string   `json:"dst"`
	TxID    string   `json:"tx_id"`
	Kind    string   `json:"kind"`
	Summary string   `json:"summary,omitempty"`
	Query   string   `json:"query,omitempty"`
	Params  []string `json:"params,omitempty"`
	Rows    []string `json:"rows,omitempty"`

	OrderKind  string `json:"order_kind,omitempty"`
	SeatNo     string `json:"seat_no,omitempty"`
	TotalPrice string `json:"total_price,omitempty"`
	OrderTime  string `json:"order_time,omitempty"`
}

func eventToJSON(ev event.Event) eventJSON {
	return eventJSON{
		TS:         ev.Timestamp.Format(time.RFC3339Nano),
		Src:        ev.Src,
		Dst:        ev.Dst,
		TxID:       ev.TxID,
		Kind:       ev.Kind.String(),
		Summary:    ev.Summary,
		Query:      ev.Query,
		Params:     ev.Params,
		Rows:       ev.Row,
		OrderKind:  ev.OrderKind,
		SeatNo:     ev.Seat,
		TotalPrice: ev.TotalPrice,
		OrderTime:  ev.OrderTime,
	}
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush() // send headers immediately

	ch, unsub := s.broker.Subscribe()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(eventToJSON(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
