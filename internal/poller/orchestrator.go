package poller

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/Syaviii/Quest-Resource-Monitor/api"
	"github.com/Syaviii/Quest-Resource-Monitor/state"
)

// Phase is the orchestrator's lifecycle state.
type Phase string

const (
	// PhaseBooting means the backend has not answered a health probe yet.
	PhaseBooting Phase = "booting"
	// PhaseOnline means streams are polling the backend.
	PhaseOnline Phase = "online"
	// PhaseOffline means a confirmed backend failure stopped all streams.
	PhaseOffline Phase = "offline"
)

// Config holds the orchestrator's polling cadence.
type Config struct {
	// FastInterval is the device and connection status cadence.
	FastInterval time.Duration
	// SlowInterval is the metrics and network stats cadence.
	SlowInterval time.Duration
	// HeavyCycle is how many slow cycles pass between storage fetches.
	HeavyCycle int
	// BootRetryDelay is the wait between health probes while booting.
	BootRetryDelay time.Duration
	// ReconnectDelay is the wait before the single automatic reconnect
	// probe after going offline.
	ReconnectDelay time.Duration
}

// DefaultConfig returns the production polling cadence.
func DefaultConfig() Config {
	return Config{
		FastInterval:   2 * time.Second,
		SlowInterval:   10 * time.Second,
		HeavyCycle:     6,
		BootRetryDelay: 5 * time.Second,
		ReconnectDelay: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FastInterval <= 0 {
		c.FastInterval = def.FastInterval
	}
	if c.SlowInterval <= 0 {
		c.SlowInterval = def.SlowInterval
	}
	if c.HeavyCycle <= 0 {
		c.HeavyCycle = def.HeavyCycle
	}
	if c.BootRetryDelay <= 0 {
		c.BootRetryDelay = def.BootRetryDelay
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	return c
}

// Orchestrator drives the polling lifecycle against one backend:
//
//	booting -> online:  health probes every BootRetryDelay until one
//	                    succeeds, then a one-time full state fetch.
//	online:             a fast stream polls device and connection
//	                    status, a slow stream polls metrics and network
//	                    stats, plus storage every HeavyCycle-th run.
//	online -> offline:  a failed metrics fetch confirmed by a failed
//	                    health probe stops both streams.
//	offline -> online:  one automatic probe after ReconnectDelay; if it
//	                    fails, recovery waits for [Orchestrator.Reconnect].
//
// All observed backend state lands in the store under fixed paths
// (devices.*, connection.*, system.*).
type Orchestrator struct {
	client *api.Client
	store  state.Store
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	phase   Phase
	running bool

	reconnectC chan struct{}
}

// New creates an orchestrator. Zero config fields fall back to
// [DefaultConfig] values.
func New(client *api.Client, store state.Store, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client:     client,
		store:      store,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		phase:      PhaseBooting,
		reconnectC: make(chan struct{}, 1),
	}, nil
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Reconnect requests a recovery probe while the orchestrator is offline.
// It reports whether the request was accepted; it is rejected when the
// orchestrator is not offline or a probe request is already pending.
func (o *Orchestrator) Reconnect() bool {
	if o.Phase() != PhaseOffline {
		return false
	}
	select {
	case o.reconnectC <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run executes the polling lifecycle until ctx is cancelled. It returns
// ctx's error, or an error immediately if the orchestrator is already
// running.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.New("orchestrator already running")
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	o.setPhase(PhaseBooting)
	if err := o.waitHealthy(ctx); err != nil {
		return err
	}
	o.initialFetch(ctx)

	for {
		o.setPhase(PhaseOnline)
		o.runOnline(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		o.setPhase(PhaseOffline)
		if err := o.awaitRecovery(ctx); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()

	o.logger.Info("phase changed", "phase", string(p))
	o.setValue("system.phase", string(p))
	o.setValue("system.online", p == PhaseOnline)
}

// waitHealthy probes the backend until it answers, waiting
// BootRetryDelay between failed probes.
func (o *Orchestrator) waitHealthy(ctx context.Context) error {
	for {
		if err := o.client.Probe(ctx); err == nil {
			o.logger.Info("backend healthy")
			return nil
		} else {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Warn("health probe failed", "error", err)
		}
		if !sleepContext(ctx, o.cfg.BootRetryDelay) {
			return ctx.Err()
		}
	}
}

// initialFetch populates the store once after boot. Individual failures
// are logged and tolerated; the streams refresh everything anyway.
func (o *Orchestrator) initialFetch(ctx context.Context) {
	if devices, err := o.client.Devices(ctx); err != nil {
		o.logger.Warn("initial device fetch failed", "error", err)
	} else {
		o.applyDevices(devices, false)
	}

	if conn, err := o.client.ConnectionStatus(ctx); err != nil {
		o.logger.Warn("initial connection fetch failed", "error", err)
	} else {
		o.applyConnection(conn, false)
	}

	if metrics, err := o.client.CurrentMetrics(ctx, false); err != nil {
		o.logger.Warn("initial metrics fetch failed", "error", err)
	} else {
		o.applyMetrics(metrics)
	}

	if stats, err := o.client.NetworkStats(ctx); err != nil {
		o.logger.Warn("initial network fetch failed", "error", err)
	} else {
		o.applyNetwork(stats)
	}

	if storage, err := o.client.QuestStorage(ctx); err != nil {
		o.logger.Warn("initial storage fetch failed", "error", err)
	} else {
		o.applyStorage(storage)
	}

	o.logger.Info("initial state loaded")
}

// runOnline runs both streams until the slow stream reports a confirmed
// backend failure or ctx is cancelled.
func (o *Orchestrator) runOnline(ctx context.Context) {
	onlineCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	offline := make(chan struct{}, 1)

	// the cycle counter lives and dies with this online session
	cycles := 0
	fast := NewStream("status", o.cfg.FastInterval, o.fastCycle, o.logger)
	slow := NewStream("metrics", o.cfg.SlowInterval, func(taskCtx context.Context) {
		cycles++
		o.slowCycle(taskCtx, cycles, offline)
	}, o.logger)

	fast.Start(onlineCtx)
	slow.Start(onlineCtx)
	o.logger.Info("poll streams started",
		"fast_interval", o.cfg.FastInterval.String(),
		"slow_interval", o.cfg.SlowInterval.String(),
	)

	select {
	case <-ctx.Done():
	case <-offline:
		o.logger.Warn("backend unreachable, stopping poll streams")
	}

	cancel()
	fast.Stop()
	slow.Stop()
}

// awaitRecovery makes one automatic probe after ReconnectDelay, then
// waits for manual [Orchestrator.Reconnect] requests.
func (o *Orchestrator) awaitRecovery(ctx context.Context) error {
	if !sleepContext(ctx, o.cfg.ReconnectDelay) {
		return ctx.Err()
	}
	if err := o.client.Probe(ctx); err == nil {
		o.logger.Info("backend recovered")
		return nil
	} else {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.logger.Warn("reconnect probe failed, waiting for manual reconnect", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.reconnectC:
			if err := o.client.Probe(ctx); err == nil {
				o.logger.Info("backend recovered")
				return nil
			} else {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				o.logger.Warn("reconnect probe failed", "error", err)
			}
		}
	}
}

// fastCycle refreshes device and connection status. Failures are
// swallowed: a dropped fast poll just leaves the last values in place.
func (o *Orchestrator) fastCycle(ctx context.Context) {
	if devices, err := o.client.Devices(ctx); err != nil {
		o.logger.Debug("device poll failed", "error", err)
	} else {
		o.applyDevices(devices, true)
	}

	if conn, err := o.client.ConnectionStatus(ctx); err != nil {
		o.logger.Debug("connection poll failed", "error", err)
	} else {
		o.applyConnection(conn, true)
	}
}

// slowCycle refreshes metrics and network stats, plus storage every
// HeavyCycle-th run. A metrics failure confirmed by a failed health
// probe signals the offline transition.
func (o *Orchestrator) slowCycle(ctx context.Context, cycles int, offline chan<- struct{}) {
	metrics, err := o.client.CurrentMetrics(ctx, false)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.logger.Warn("metrics poll failed", "error", err)
		if probeErr := o.client.Probe(ctx); probeErr != nil {
			select {
			case offline <- struct{}{}:
			default:
			}
			return
		}
		// backend is alive, the metrics failure was transient
	} else {
		o.applyMetrics(metrics)
	}

	if stats, err := o.client.NetworkStats(ctx); err != nil {
		o.logger.Debug("network poll failed", "error", err)
	} else {
		o.applyNetwork(stats)
	}

	if cycles%o.cfg.HeavyCycle == 0 {
		if storage, err := o.client.QuestStorage(ctx); err != nil {
			o.logger.Debug("storage poll failed", "error", err)
		} else {
			o.applyStorage(storage)
		}
	}
}

func (o *Orchestrator) applyDevices(devices []api.Device, onChange bool) {
	for _, device := range devices {
		prefix := "devices." + device.ID + "."
		o.write(prefix+"status", device.Status, onChange)
		o.write(prefix+"error", device.Error, onChange)
		if device.ConnectedAt != nil {
			o.write(prefix+"connected_at", *device.ConnectedAt, onChange)
		}
		if device.LastUpdate != nil {
			o.write(prefix+"last_update", *device.LastUpdate, onChange)
		}
	}
}

func (o *Orchestrator) applyConnection(conn *api.ConnectionStatus, onChange bool) {
	o.write("connection.state", conn.State, onChange)
	o.write("connection.mode", conn.Mode, onChange)
	o.write("connection.usb_connected", conn.USBConnected, onChange)
	o.write("connection.wireless_connected", conn.WirelessConnected, onChange)
	o.write("connection.wireless_ip", conn.WirelessIP, onChange)
	o.write("connection.wireless_port", conn.WirelessPort, onChange)
	o.write("connection.priority", conn.Priority, onChange)
	o.write("connection.quality", conn.Quality, onChange)
	o.write("connection.active_serial", conn.ActiveSerial, onChange)
	if conn.LatencyMs != nil {
		o.write("connection.latency_ms", *conn.LatencyMs, onChange)
	}
	targets := make([]any, len(conn.CanSwitchTo))
	for i, mode := range conn.CanSwitchTo {
		targets[i] = mode
	}
	o.write("connection.can_switch_to", targets, onChange)
}

func (o *Orchestrator) applyMetrics(metrics *api.CurrentMetrics) {
	o.applySample(api.DevicePC, metrics.PC)
	o.applySample(api.DeviceQuest, metrics.Quest)

	if stats := metrics.BatteryStats; stats != nil {
		prefix := "devices." + api.DeviceQuest + ".battery."
		o.setValue(prefix+"is_charging", stats.IsCharging)
		o.setValue(prefix+"current_level", stats.CurrentLevel)
		o.setValue(prefix+"eta_text", stats.ETAText)
		o.setValue(prefix+"charge_rate", stats.ChargeRate)
		if stats.ETAMinutes != nil {
			o.setValue(prefix+"eta_minutes", *stats.ETAMinutes)
		}
	}

	o.setValue("system.metrics_timestamp", metrics.Timestamp)
}

// applySample writes one device's metric sample. A nil sample means the
// device was unreachable this cycle; the previous values stay.
func (o *Orchestrator) applySample(deviceID string, sample *api.MetricSample) {
	if sample == nil {
		o.logger.Debug("no metric sample", "device", deviceID)
		return
	}
	prefix := "devices." + deviceID + ".metrics."
	fields := []struct {
		key   string
		value *float64
	}{
		{"cpu", sample.CPU},
		{"ram", sample.RAM},
		{"ram_total", sample.RAMTotal},
		{"temp", sample.Temp},
		{"battery", sample.Battery},
		{"disk", sample.Disk},
		{"disk_total", sample.DiskTotal},
	}
	for _, field := range fields {
		if field.value != nil {
			o.setValue(prefix+field.key, *field.value)
		}
	}
	o.setValue(prefix+"timestamp", sample.Timestamp)
	if sample.SessionID != "" {
		o.setValue(prefix+"session_id", sample.SessionID)
	}
}

func (o *Orchestrator) applyNetwork(stats *api.NetworkStats) {
	o.applyDeviceNetwork(api.DevicePC, stats.PC)
	o.applyDeviceNetwork(api.DeviceQuest, stats.Quest)
}

func (o *Orchestrator) applyDeviceNetwork(deviceID string, stats *api.DeviceNetworkStats) {
	if stats == nil {
		return
	}
	prefix := "devices." + deviceID + ".network."
	o.setValue(prefix+"download_mbps", stats.DownloadMbps)
	o.setValue(prefix+"upload_mbps", stats.UploadMbps)
	o.setValue(prefix+"avg_download_5min", stats.AvgDownload5Min)
	o.setValue(prefix+"avg_upload_5min", stats.AvgUpload5Min)
	o.setValue(prefix+"status", stats.Status)
	if stats.ConnectionType != "" {
		o.setValue(prefix+"connection_type", stats.ConnectionType)
	}
}

func (o *Orchestrator) applyStorage(info *api.StorageInfo) {
	o.setValue("system.storage.total_gb", info.TotalGB)
	o.setValue("system.storage.used_gb", info.UsedGB)
	o.setValue("system.storage.free_gb", info.FreeGB)
	o.setValue("system.storage.percent_used", info.PercentUsed)
}

// write stores a value, skipping the write when onChange is set and the
// stored value is already equal.
func (o *Orchestrator) write(path string, value any, onChange bool) {
	if onChange && reflect.DeepEqual(o.store.Get(path), value) {
		return
	}
	o.setValue(path, value)
}

func (o *Orchestrator) setValue(path string, value any) {
	if err := o.store.Set(path, value); err != nil {
		o.logger.Warn("state write failed", "path", path, "error", err)
	}
}

// sleepContext waits for d or until ctx is done, reporting whether the
// full delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
