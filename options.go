package questmonitor

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// subscription pairs a state path with a change callback registered at
// construction time.
type subscription struct {
	path string
	fn   func(value, old any, path string)
}

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	timeout        time.Duration
	maxAttempts    int
	backoffBase    time.Duration
	fastInterval   time.Duration
	slowInterval   time.Duration
	heavyCycle     int
	bootRetryDelay time.Duration
	reconnectDelay time.Duration
	httpClient     *http.Client
	headers        map[string]string
	initial        map[string]any
	inspectAddr    string
	logger         *slog.Logger
	subscriptions  []subscription
}

// Option is a function that configures a [Monitor] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*monitorConfig) error

// WithRequestTimeout sets the per-attempt request timeout against the
// backend. A timed-out request is not retried. Defaults to 5 seconds.
//
// Example:
//
//	m, err := questmonitor.New(baseURL,
//	    questmonitor.WithRequestTimeout(3 * time.Second),
//	)
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithMaxAttempts sets the total number of attempts per backend request,
// including the first. Only transient failures consume extra attempts;
// rejections and timeouts fail on the first. Defaults to 3.
//
// Returns an error if the value is zero or negative.
func WithMaxAttempts(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("max attempts must be positive")
		}
		cfg.maxAttempts = n
		return nil
	}
}

// WithBackoffBase sets the base delay for exponential backoff between
// request retries. The wait before retry n is base * 2^(n-1).
// Defaults to 100 milliseconds.
//
// Returns an error if the duration is zero or negative.
func WithBackoffBase(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("backoff base must be positive")
		}
		cfg.backoffBase = d
		return nil
	}
}

// WithFastInterval sets the cadence of the fast poll stream, which
// refreshes device and connection status. Defaults to 2 seconds.
//
// Example:
//
//	m, err := questmonitor.New(baseURL,
//	    questmonitor.WithFastInterval(time.Second),
//	    questmonitor.WithSlowInterval(5 * time.Second),
//	)
//
// Returns an error if the duration is zero or negative.
func WithFastInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("fast interval must be positive")
		}
		cfg.fastInterval = d
		return nil
	}
}

// WithSlowInterval sets the cadence of the slow poll stream, which
// refreshes metrics and network stats. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithSlowInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("slow interval must be positive")
		}
		cfg.slowInterval = d
		return nil
	}
}

// WithHeavyCycle sets how many slow cycles pass between headset storage
// fetches. Storage changes slowly and the fetch is expensive, so it runs
// on every HeavyCycle-th slow cycle. Defaults to 6.
//
// Returns an error if the value is zero or negative.
func WithHeavyCycle(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("heavy cycle must be positive")
		}
		cfg.heavyCycle = n
		return nil
	}
}

// WithBootRetryDelay sets the wait between health probes while the
// backend has not answered yet. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithBootRetryDelay(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("boot retry delay must be positive")
		}
		cfg.bootRetryDelay = d
		return nil
	}
}

// WithReconnectDelay sets the wait before the single automatic reconnect
// probe after the monitor goes offline. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithReconnectDelay(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("reconnect delay must be positive")
		}
		cfg.reconnectDelay = d
		return nil
	}
}

// WithHTTPClient replaces the underlying [http.Client] used for backend
// requests. Useful for tests and custom transports.
//
// Returns an error if the client is nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *monitorConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = hc
		return nil
	}
}

// WithHeader adds a header sent with every backend request. Can be
// called multiple times to add several headers.
//
// Returns an error if the key is empty.
func WithHeader(key, value string) Option {
	return func(cfg *monitorConfig) error {
		if key == "" {
			return errors.New("header key cannot be empty")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string)
		}
		cfg.headers[key] = value
		return nil
	}
}

// WithInitialState seeds the state tree with the given values instead of
// the default schema. The map is used as-is; the caller must not modify
// it afterwards.
func WithInitialState(initial map[string]any) Option {
	return func(cfg *monitorConfig) error {
		cfg.initial = initial
		return nil
	}
}

// WithInspectAddr enables the inspection HTTP server on the given
// listen address (for example "127.0.0.1:7070"). The server exposes the
// state tree, the monitor phase and a live change feed. Disabled when
// not set.
func WithInspectAddr(addr string) Option {
	return func(cfg *monitorConfig) error {
		if addr == "" {
			return errors.New("inspect address cannot be empty")
		}
		cfg.inspectAddr = addr
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Monitor instance.
//
// This allows SDK consumers to control where logs are written and in
// what format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	m, err := questmonitor.New(baseURL,
//	    questmonitor.WithLogger(logger),
//	)
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithChangeCallback subscribes fn to changes under path before polling
// starts, so no early writes are missed. The path follows the state
// tree's addressing: an exact path, an ancestor of deeper paths, or
// [questmonitor.Wildcard] for every change.
//
// Multiple callbacks may be registered by calling WithChangeCallback
// multiple times; per path they fire in registration order.
//
// Callbacks run synchronously on the goroutine that wrote the change.
// Long-running work should be dispatched to a separate goroutine. Panics
// within callbacks are recovered and logged; they do not crash polling.
//
// Example:
//
//	m, err := questmonitor.New(baseURL,
//	    questmonitor.WithChangeCallback("devices.quest_3.status", func(value, old any, path string) {
//	        if value == "disconnected" {
//	            log.Printf("headset dropped (was %v)", old)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithChangeCallback(path string, fn func(value, old any, path string)) Option {
	return func(cfg *monitorConfig) error {
		if fn == nil {
			return nil
		}
		cfg.subscriptions = append(cfg.subscriptions, subscription{path: path, fn: fn})
		return nil
	}
}
