package config

import (
	"sort"

	questmonitor "github.com/Syaviii/Quest-Resource-Monitor"
)

// Options converts parsed configuration into SDK options.
//
// Only fields that were set in the YAML produce options; everything
// else keeps the library defaults. The logger is not part of the
// configuration file, so callers typically append
// [questmonitor.WithLogger] to the returned slice.
func Options(cfg *Config) []questmonitor.Option {
	var opts []questmonitor.Option

	if cfg.Timeout != 0 {
		opts = append(opts, questmonitor.WithRequestTimeout(cfg.Timeout.Duration()))
	}
	if cfg.MaxAttempts != 0 {
		opts = append(opts, questmonitor.WithMaxAttempts(cfg.MaxAttempts))
	}
	if cfg.BackoffBase != 0 {
		opts = append(opts, questmonitor.WithBackoffBase(cfg.BackoffBase.Duration()))
	}

	if cfg.FastInterval != 0 {
		opts = append(opts, questmonitor.WithFastInterval(cfg.FastInterval.Duration()))
	}
	if cfg.SlowInterval != 0 {
		opts = append(opts, questmonitor.WithSlowInterval(cfg.SlowInterval.Duration()))
	}
	if cfg.HeavyCycle != 0 {
		opts = append(opts, questmonitor.WithHeavyCycle(cfg.HeavyCycle))
	}
	if cfg.BootRetryDelay != 0 {
		opts = append(opts, questmonitor.WithBootRetryDelay(cfg.BootRetryDelay.Duration()))
	}
	if cfg.ReconnectDelay != 0 {
		opts = append(opts, questmonitor.WithReconnectDelay(cfg.ReconnectDelay.Duration()))
	}

	// sort keys for deterministic option ordering
	if len(cfg.Headers) > 0 {
		keys := make([]string, 0, len(cfg.Headers))
		for k := range cfg.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			opts = append(opts, questmonitor.WithHeader(k, cfg.Headers[k]))
		}
	}

	if cfg.Listen != "" {
		opts = append(opts, questmonitor.WithInspectAddr(cfg.Listen))
	}

	return opts
}
