package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stream runs a task on a fixed interval until stopped.
//
// The first run happens one full interval after [Stream.Start]; there is
// no immediate run. The task executes synchronously inside the stream's
// goroutine, so runs never overlap: if a run outlasts the interval,
// intermediate ticks are dropped and the next run starts on the first
// tick after the previous run returns.
//
// A Stream is restartable: after [Stream.Stop] returns it can be started
// again with a fresh context.
type Stream struct {
	name     string
	interval time.Duration
	task     func(context.Context)
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStream creates a stream that runs task every interval once started.
// The interval must be positive and the task non-nil.
func NewStream(name string, interval time.Duration, task func(context.Context), logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
	}
}

// Name returns the stream's name as used in log lines.
func (s *Stream) Name() string { return s.name }

// Start launches the stream's goroutine. It is a no-op if the stream is
// already running. The stream stops when ctx is cancelled or when
// [Stream.Stop] is called.
func (s *Stream) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		select {
		case <-s.done:
			// previous run finished, allow restart
		default:
			return
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.logger.Debug("poll stream starting", "stream", s.name, "interval", s.interval.String())
	go s.run(runCtx, done)
}

// Stop cancels the stream and waits for any in-flight run to return.
// Calling Stop on a stopped stream is a no-op.
func (s *Stream) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Debug("poll stream stopped", "stream", s.name)
}

// Running reports whether the stream's goroutine is active.
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Stream) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeRun(ctx)
		}
	}
}

// safeRun isolates panics so one bad cycle cannot kill the stream.
func (s *Stream) safeRun(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("poll stream task panicked",
				"stream", s.name,
				"panic", r,
				"correlation_id", uuid.NewString(),
			)
		}
	}()
	s.task(ctx)
}
