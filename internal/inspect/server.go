package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Syaviii/Quest-Resource-Monitor/state"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write
	// operation. This prevents goroutine leaks when clients are slow or
	// disconnected. Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// eventBuffer is how many state changes an SSE client may lag behind
	// before changes are dropped for it.
	eventBuffer = 64
)

// Server exposes the live state tree over HTTP for inspection.
//
// Server provides three endpoints:
//   - GET /state: the full state tree as JSON
//   - GET /healthz: the monitor's lifecycle phase
//   - GET /events: Server-Sent Events stream of state changes
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      state.Store
	phase      func() string
	addr       string
	httpServer *http.Server
	listenAddr string
	logger     *slog.Logger
}

// changeEvent is one state change on the SSE stream. The first event of
// a stream carries the full tree under an empty path.
type changeEvent struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
	Old   any    `json:"old,omitempty"`
}

// NewServer creates a new inspection [Server].
//
// Parameters:
//   - st: the state tree to expose
//   - phase: reports the monitor's current lifecycle phase
//   - addr: TCP listen address, for example "127.0.0.1:7070"
//   - logger: logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st state.Store, phase func() string, addr string, logger *slog.Logger) *Server {
	return &Server{
		store:  st,
		phase:  phase,
		addr:   addr,
		logger: logger,
	}
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the
// server is listening. The server will continue running until the
// context is cancelled, at which point it initiates a graceful shutdown
// with a 5-second timeout.
//
// Returns an error if the server fails to bind to the configured
// address.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/events", s.handleEvents)

	// create listener first to verify address availability synchronously
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", s.addr, err)
	}
	s.listenAddr = ln.Addr().String()

	s.httpServer = &http.Server{
		Handler: mux,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("inspect server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("inspect server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the actual listen address once [Server.Start] succeeded.
// Useful when the configured address uses port 0.
func (s *Server) Addr() string {
	return s.listenAddr
}

// handleState returns the full state tree as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(s.store.Snapshot()); err != nil {
		s.logger.Error("failed to encode state response", "error", err)
	}
}

// handleHealthz reports the monitor's lifecycle phase.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(map[string]string{"phase": s.phase()}); err != nil {
		s.logger.Error("failed to encode healthz response", "error", err)
	}
}

// handleEvents streams state changes via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when
// clients are slow or disconnected. Without deadlines, a blocked Fprintf
// call would prevent the handler from detecting context cancellation.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush
	// operations. This is the Go 1.20+ idiomatic way to handle write
	// timeouts.
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some
	// ResponseWriter impls)
	deadlinesSupported := true

	// writeAndFlush writes SSE data with a deadline to prevent blocking
	// forever. If the client is slow or disconnected, the write will
	// timeout rather than blocking indefinitely, allowing the handler to
	// detect shutdown signals.
	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// bridge the synchronous subscription into a channel; writers must
	// never block on a slow SSE client, so lagging clients lose events
	events := make(chan changeEvent, eventBuffer)
	unsubscribe := s.store.Subscribe(state.Wildcard, func(value, old any, path string) {
		select {
		case events <- changeEvent{Path: path, Value: value, Old: old}:
		default:
		}
	})
	defer unsubscribe()

	// send the full tree first so clients start from a consistent view
	initial, err := json.Marshal(changeEvent{Path: "", Value: s.store.Snapshot()})
	if err == nil {
		if err := writeAndFlush(initial); err != nil {
			return
		}
	}

	// stream changes
	for {
		select {
		case event := <-events:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
