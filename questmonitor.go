package questmonitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Syaviii/Quest-Resource-Monitor/api"
	"github.com/Syaviii/Quest-Resource-Monitor/internal/inspect"
	"github.com/Syaviii/Quest-Resource-Monitor/internal/poller"
	"github.com/Syaviii/Quest-Resource-Monitor/state"
)

// Wildcard subscribes to every state change when passed to
// [Monitor.Subscribe] or [WithChangeCallback].
const Wildcard = state.Wildcard

// Monitor is the main orchestrator for backend polling and reactive
// state.
//
// Monitor connects to one backend, keeps a hierarchical state tree in
// sync with it, and notifies subscribers about changes. It is created
// using [New] with functional options and started with [Monitor.Start].
//
// The typical lifecycle is:
//
//	m, err := questmonitor.New("http://127.0.0.1:8080")
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context
// to trigger graceful shutdown.
type Monitor struct {
	client      *api.Client
	store       *state.Tree
	orch        *poller.Orchestrator
	inspectAddr string
	logger      *slog.Logger
}

// New creates a new [Monitor] polling the backend at baseURL.
//
// The base URL is required; everything else has defaults:
//   - Request timeout: 5 seconds, 3 attempts, 100 ms backoff base
//   - Fast poll stream: every 2 seconds
//   - Slow poll stream: every 10 seconds, storage on every 6th cycle
//   - Boot and reconnect probes: 5 seconds apart
//
// Returns an error if the base URL or any option is invalid.
//
// Example:
//
//	m, err := questmonitor.New("http://127.0.0.1:8080",
//	    questmonitor.WithFastInterval(time.Second),
//	    questmonitor.WithChangeCallback("system.online", onOnlineChange),
//	)
func New(baseURL string, opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	apiOpts := []api.Option{api.WithLogger(logger)}
	if cfg.timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.timeout))
	}
	if cfg.maxAttempts > 0 {
		apiOpts = append(apiOpts, api.WithMaxAttempts(cfg.maxAttempts))
	}
	if cfg.backoffBase > 0 {
		apiOpts = append(apiOpts, api.WithBackoffBase(cfg.backoffBase))
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}
	for key, value := range cfg.headers {
		apiOpts = append(apiOpts, api.WithHeader(key, value))
	}

	client, err := api.New(baseURL, apiOpts...)
	if err != nil {
		return nil, err
	}

	initial := cfg.initial
	if initial == nil {
		initial = defaultSchema()
	}
	store := state.New(initial, logger)

	// subscriptions registered before polling starts see every write
	for _, sub := range cfg.subscriptions {
		store.Subscribe(sub.path, sub.fn)
	}

	orch, err := poller.New(client, store, poller.Config{
		FastInterval:   cfg.fastInterval,
		SlowInterval:   cfg.slowInterval,
		HeavyCycle:     cfg.heavyCycle,
		BootRetryDelay: cfg.bootRetryDelay,
		ReconnectDelay: cfg.reconnectDelay,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Monitor{
		client:      client,
		store:       store,
		orch:        orch,
		inspectAddr: cfg.inspectAddr,
		logger:      logger,
	}, nil
}

// defaultSchema is the state tree shape before the first poll lands.
func defaultSchema() map[string]any {
	return map[string]any{
		"system": map[string]any{
			"phase":  "booting",
			"online": false,
		},
		"devices": map[string]any{
			api.DevicePC: map[string]any{
				"status": "unknown",
			},
			api.DeviceQuest: map[string]any{
				"status": "unknown",
			},
		},
		"connection": map[string]any{
			"state": "unknown",
			"mode":  "",
		},
	}
}

// Start begins polling the backend and blocks until the provided
// context is cancelled.
//
// During execution:
//
//   - The backend is health-probed until it answers, then the state
//     tree is populated with a full fetch
//   - The fast and slow poll streams keep the tree in sync
//   - A confirmed backend failure stops polling until the backend
//     recovers (see [Monitor.Reconnect])
//   - If configured via [WithInspectAddr], the inspection server runs
//     alongside
//
// The caller controls the lifecycle via context cancellation. For
// signal handling, use [signal.NotifyContext]:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	m.Start(ctx)
//
// Returns nil on graceful shutdown. Returns an error if the inspection
// server fails to start or Start is called while already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("monitor starting", "backend", m.client.BaseURL())

	if ctx.Err() != nil {
		return nil
	}

	if m.inspectAddr != "" {
		srv := inspect.NewServer(m.store, m.phaseString, m.inspectAddr, m.logger)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start inspect server: %w", err)
		}
		m.logger.Info("inspect server available", "url", fmt.Sprintf("http://%s/state", m.inspectAddr))
	}

	err := m.orch.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	m.logger.Info("monitor stopped")
	return nil
}

// Store returns the monitor's state tree for reads and subscriptions.
//
// The tree is live: polling keeps writing to it while the monitor runs.
// Values read through [state.Store.Get] are defensive copies.
func (m *Monitor) Store() state.Store {
	return m.store
}

// Client returns the backend API client for direct operations such as
// starting recordings or switching the headset connection.
func (m *Monitor) Client() *api.Client {
	return m.client
}

// Subscribe registers fn for changes under path and returns its
// unsubscribe function. Shorthand for m.Store().Subscribe.
func (m *Monitor) Subscribe(path string, fn func(value, old any, path string)) func() {
	return m.store.Subscribe(path, fn)
}

// Phase returns the monitor's lifecycle phase.
func (m *Monitor) Phase() Phase {
	return Phase(m.orch.Phase())
}

// Reconnect requests a recovery probe while the monitor is offline.
// It reports whether the request was accepted; it is rejected when the
// monitor is not offline or a probe is already pending.
func (m *Monitor) Reconnect() bool {
	return m.orch.Reconnect()
}

func (m *Monitor) phaseString() string {
	return string(m.orch.Phase())
}
