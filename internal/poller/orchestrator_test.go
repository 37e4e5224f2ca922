package poller

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Syaviii/Quest-Resource-Monitor/api"
	"github.com/Syaviii/Quest-Resource-Monitor/state"
)

// fakeBackend is a scripted backend whose endpoints can be failed
// individually to drive the orchestrator through its lifecycle.
type fakeBackend struct {
	mu           sync.Mutex
	healthy      bool
	metricsFail  bool
	devicesFail  bool
	deviceStatus string
	hits         map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		healthy:      true,
		deviceStatus: "connected",
		hits:         make(map[string]int),
	}
}

func (b *fakeBackend) set(fn func(*fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) hitCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.hits[r.URL.Path]++
	healthy := b.healthy
	metricsFail := b.metricsFail
	devicesFail := b.devicesFail
	deviceStatus := b.deviceStatus
	b.mu.Unlock()

	fail := func() {
		writeJSON(w, http.StatusInternalServerError,
			`{"success": false, "error": {"code": "INTERNAL_ERROR", "message": "backend down"}}`)
	}

	switch r.URL.Path {
	case "/health":
		if !healthy {
			fail()
			return
		}
		writeJSON(w, http.StatusOK, `{"success": true, "data": {"status": "healthy"}}`)
	case "/devices":
		if devicesFail {
			fail()
			return
		}
		writeJSON(w, http.StatusOK,
			`{"success": true, "data": {"devices": [
				{"id": "pc", "name": "PC", "status": "`+deviceStatus+`"},
				{"id": "quest_3", "name": "Quest 3", "status": "connected"}
			]}}`)
	case "/connection/status":
		writeJSON(w, http.StatusOK,
			`{"success": true, "data": {"state": "connected", "mode": "usb", "usb_connected": true, "priority": "usb_first", "quality": "excellent"}}`)
	case "/metrics/current":
		if metricsFail {
			fail()
			return
		}
		writeJSON(w, http.StatusOK,
			`{"success": true, "data": {
				"timestamp": 1755700123,
				"pc": {"device_id": "pc", "timestamp": 1755700123, "cpu": 42.5, "ram": 61.0},
				"quest_3": {"device_id": "quest_3", "timestamp": 1755700123, "cpu": 18.0, "battery": 84.0}
			}}`)
	case "/metrics/network":
		writeJSON(w, http.StatusOK,
			`{"success": true, "data": {"pc": {"download_mbps": 94.2, "upload_mbps": 11.8, "status": "active"}}}`)
	case "/quest/storage":
		writeJSON(w, http.StatusOK,
			`{"success": true, "data": {"total_gb": 128.0, "used_gb": 97.3, "free_gb": 30.7, "percent_used": 76.0}}`)
	default:
		writeJSON(w, http.StatusNotFound,
			`{"success": false, "error": {"code": "VALIDATION_ERROR", "message": "unknown endpoint"}}`)
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func testConfig() Config {
	return Config{
		FastInterval:   15 * time.Millisecond,
		SlowInterval:   30 * time.Millisecond,
		HeavyCycle:     2,
		BootRetryDelay: 10 * time.Millisecond,
		ReconnectDelay: 25 * time.Millisecond,
	}
}

// startOrchestrator runs an orchestrator against the fake backend and
// tears it down with the test. The store is passed in so tests can
// subscribe before any polling starts.
func startOrchestrator(t *testing.T, backend *fakeBackend, cfg Config, store *state.Tree) *Orchestrator {
	t.Helper()

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := api.New(server.URL,
		api.WithLogger(testLogger()),
		api.WithBackoffBase(time.Millisecond),
		api.WithTimeout(time.Second),
	)
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}
	t.Cleanup(client.Close)

	o, err := New(client, store, cfg, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return o
}

func waitForPhase(t *testing.T, o *Orchestrator, want Phase) {
	t.Helper()
	if !waitUntil(t, 5*time.Second, func() bool { return o.Phase() == want }) {
		t.Fatalf("Phase() = %q, want %q", o.Phase(), want)
	}
}

func TestNew_Validation(t *testing.T) {
	store := state.New(nil, testLogger())
	client, err := api.New("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}

	if _, err := New(nil, store, Config{}, testLogger()); err == nil {
		t.Error("New(nil client) error = nil, want error")
	}
	if _, err := New(client, nil, Config{}, testLogger()); err == nil {
		t.Error("New(nil store) error = nil, want error")
	}
	if _, err := New(client, store, Config{}, nil); err != nil {
		t.Errorf("New(nil logger) error = %v, want nil", err)
	}
}

func TestConfig_Defaults(t *testing.T) {
	got := Config{}.withDefaults()
	want := DefaultConfig()
	if got != want {
		t.Errorf("withDefaults() = %+v, want %+v", got, want)
	}

	partial := Config{FastInterval: time.Second}.withDefaults()
	if partial.FastInterval != time.Second {
		t.Errorf("FastInterval = %v, want %v", partial.FastInterval, time.Second)
	}
	if partial.SlowInterval != want.SlowInterval {
		t.Errorf("SlowInterval = %v, want default %v", partial.SlowInterval, want.SlowInterval)
	}
}

func TestOrchestrator_BootsWhenHealthy(t *testing.T) {
	backend := newFakeBackend()
	store := state.New(nil, testLogger())
	o := startOrchestrator(t, backend, testConfig(), store)

	waitForPhase(t, o, PhaseOnline)

	if got := store.Get("system.phase"); got != "online" {
		t.Errorf("system.phase = %v, want %q", got, "online")
	}
	if got := store.Get("system.online"); got != true {
		t.Errorf("system.online = %v, want true", got)
	}
	// initial fetch ran before the phase flipped
	if got := store.Get("devices.pc.status"); got != "connected" {
		t.Errorf("devices.pc.status = %v, want %q", got, "connected")
	}
	if got := store.Get("connection.mode"); got != "usb" {
		t.Errorf("connection.mode = %v, want %q", got, "usb")
	}
	if store.Get("devices.pc.metrics.cpu") == nil {
		t.Error("devices.pc.metrics.cpu not populated by initial fetch")
	}
	if store.Get("system.storage.total_gb") == nil {
		t.Error("system.storage.total_gb not populated by initial fetch")
	}
}

func TestOrchestrator_BootRetriesUntilHealthy(t *testing.T) {
	backend := newFakeBackend()
	backend.set(func(b *fakeBackend) { b.healthy = false })

	store := state.New(nil, testLogger())
	o := startOrchestrator(t, backend, testConfig(), store)

	if !waitUntil(t, 5*time.Second, func() bool { return backend.hitCount("/health") >= 3 }) {
		t.Fatalf("health probed %d times, want at least 3", backend.hitCount("/health"))
	}
	if got := o.Phase(); got != PhaseBooting {
		t.Errorf("Phase() = %q while backend down, want %q", got, PhaseBooting)
	}

	backend.set(func(b *fakeBackend) { b.healthy = true })
	waitForPhase(t, o, PhaseOnline)
}

func TestOrchestrator_FastStreamWritesOnlyOnChange(t *testing.T) {
	backend := newFakeBackend()
	store := state.New(nil, testLogger())

	var mu sync.Mutex
	var statuses []any
	store.Subscribe("devices.pc.status", func(value, old any, path string) {
		mu.Lock()
		statuses = append(statuses, value)
		mu.Unlock()
	})

	o := startOrchestrator(t, backend, testConfig(), store)
	waitForPhase(t, o, PhaseOnline)

	// let several fast cycles pass with an unchanged status
	base := backend.hitCount("/devices")
	waitUntil(t, 5*time.Second, func() bool { return backend.hitCount("/devices") >= base+4 })

	mu.Lock()
	got := len(statuses)
	mu.Unlock()
	if got != 1 {
		t.Fatalf("status notifications = %d after steady polls, want 1 (initial fetch only)", got)
	}

	backend.set(func(b *fakeBackend) { b.deviceStatus = "disconnected" })

	if !waitUntil(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 2
	}) {
		t.Fatal("status change never observed")
	}

	mu.Lock()
	last := statuses[len(statuses)-1]
	mu.Unlock()
	if last != "disconnected" {
		t.Errorf("last status notification = %v, want %q", last, "disconnected")
	}
}

func TestOrchestrator_SlowStreamCadence(t *testing.T) {
	backend := newFakeBackend()
	store := state.New(nil, testLogger())
	startOrchestrator(t, backend, testConfig(), store)

	// 1 initial fetch + at least 6 slow cycles
	if !waitUntil(t, 10*time.Second, func() bool { return backend.hitCount("/metrics/current") >= 7 }) {
		t.Fatalf("metrics polled %d times, want at least 7", backend.hitCount("/metrics/current"))
	}

	metrics := backend.hitCount("/metrics/current")
	network := backend.hitCount("/metrics/network")
	storage := backend.hitCount("/quest/storage")

	// network stats ride along on every slow cycle
	if network < metrics-2 {
		t.Errorf("network polls = %d, metrics polls = %d, want them to track", network, metrics)
	}
	// storage only every HeavyCycle-th cycle plus the initial fetch
	if storage < 2 {
		t.Errorf("storage polls = %d, want at least 2", storage)
	}
	if storage >= metrics {
		t.Errorf("storage polls = %d not sparser than metrics polls = %d", storage, metrics)
	}

	if store.Get("devices.pc.network.download_mbps") == nil {
		t.Error("network stats never written")
	}
}

func TestOrchestrator_ConfirmedFailureGoesOffline(t *testing.T) {
	backend := newFakeBackend()
	store := state.New(nil, testLogger())
	o := startOrchestrator(t, backend, testConfig(), store)
	waitForPhase(t, o, PhaseOnline)

	backend.set(func(b *fakeBackend) {
		b.metricsFail = true
		b.healthy = false
	})

	waitForPhase(t, o, PhaseOffline)

	if got := store.Get("system.online"); got != false {
		t.Errorf("system.online = %v, want false", got)
	}
	if got := store.Get("system.phase"); got != "offline" {
		t.Errorf("system.phase = %v, want %q", got, "offline")
	}

	// all polling stops: request counts must flatline
	time.Sleep(100 * time.Millisecond)
	devices := backend.hitCount("/devices")
	metrics := backend.hitCount("/metrics/current")
	time.Sleep(150 * time.Millisecond)
	if got := backend.hitCount("/devices"); got != devices {
		t.Errorf("device polls continued offline: %d -> %d", devices, got)
	}
	if got := backend.hitCount("/metrics/current"); got != metrics {
		t.Errorf("metrics polls continued offline: %d -> %d", metrics, got)
	}
}

func TestOrchestrator_TransientMetricsFailureStaysOnline(t *testing.T) {
	backend := newFakeBackend()
	store := state.New(nil, testLogger())
	o := startOrchestrator(t, backend, testConfig(), store)
	waitForPhase(t, o, PhaseOnline)

	// metrics fail but health stays up, so the probe clears the scare
	healthBefore := backend.hitCount("/health")
	backend.set(func(b *fakeBackend) { b.metricsFail = true })

	if !waitUntil(t, 5*time.Second, func() bool { return backend.hitCount("/health") > healthBefore }) {
		t.Fatal("confirming health probe never sent")
	}
	if got := o.Phase(); got != PhaseOnline {
		t.Errorf("Phase() = %q after transient failure, want %q", got, PhaseOnline)
	}

	backend.set(func(b *fakeBackend) { b.metricsFail = false })
	metricsBefore := backend.hitCount("/metrics/current")
	if !waitUntil(t, 5*time.Second, func() bool { return backend.hitCount("/metrics/current") > metricsBefore }) {
		t.Fatal("metrics polling did not resume")
	}
	if got := o.Phase(); got != PhaseOnline {
		t.Errorf("Phase() = %q after recovery, want %q", got, PhaseOnline)
	}
}

func TestOrchestrator_FastFailuresSwallowed(t *testing.T) {
	backend := newFakeBackend()
	backend.set(func(b *fakeBackend) { b.devicesFail = true })

	store := state.New(nil, testLogger())
	o := startOrchestrator(t, backend, testConfig(), store)
	waitForPhase(t, o, PhaseOnline)

	base := backend.hitCount("/devices")
	if !waitUntil(t, 5*time.Second, func() bool { return backend.hitCount("/devices") > base }) {
		t.Fatal("device polling stopped")
	}
	if got := o.Phase(); got != PhaseOnline {
		t.Errorf("Phase() = %q with failing device polls, want %q", got, PhaseOnline)
	}
}

func TestOrchestrator_SingleAutomaticReconnectProbe(t *testing.T) {
	backend := newFakeBackend()
	store := state.New(nil, testLogger())
	o := startOrchestrator(t, backend, testConfig(), store)
	waitForPhase(t, o, PhaseOnline)

	probesBefore := backend.hitCount("/health")
	backend.set(func(b *fakeBackend) {
		b.metricsFail = true
		b.healthy = false
	})
	waitForPhase(t, o, PhaseOffline)

	// one confirming probe on the way down, then exactly one automatic
	// reconnect probe
	if !waitUntil(t, 5*time.Second, func() bool { return backend.hitCount("/health") >= probesBefore+2 }) {
		t.Fatalf("automatic reconnect probe never sent: %d probes", backend.hitCount("/health"))
	}
	time.Sleep(200 * time.Millisecond)
	if got := backend.hitCount("/health"); got != probesBefore+2 {
		t.Errorf("health probes = %d after failed reconnect, want %d", got, probesBefore+2)
	}
	if got := o.Phase(); got != PhaseOffline {
		t.Errorf("Phase() = %q, want %q", got, PhaseOffline)
	}
}

func TestOrchestrator_AutomaticReconnectRecovers(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig()
	cfg.ReconnectDelay = 150 * time.Millisecond // headroom to heal the backend in time

	store := state.New(nil, testLogger())
	o := startOrchestrator(t, backend, cfg, store)
	waitForPhase(t, o, PhaseOnline)

	backend.set(func(b *fakeBackend) {
		b.metricsFail = true
		b.healthy = false
	})
	waitForPhase(t, o, PhaseOffline)

	// heal before the automatic probe fires
	backend.set(func(b *fakeBackend) {
		b.metricsFail = false
		b.healthy = true
	})

	waitForPhase(t, o, PhaseOnline)
}

func TestOrchestrator_ManualReconnect(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig()
	cfg.HeavyCycle = 1000 // keep storage out of the picture after boot

	store := state.New(nil, testLogger())
	o := startOrchestrator(t, backend, cfg, store)
	waitForPhase(t, o, PhaseOnline)

	probesBefore := backend.hitCount("/health")
	backend.set(func(b *fakeBackend) {
		b.metricsFail = true
		b.healthy = false
	})
	waitForPhase(t, o, PhaseOffline)

	// burn the confirming probe and the automatic reconnect probe
	if !waitUntil(t, 5*time.Second, func() bool { return backend.hitCount("/health") >= probesBefore+2 }) {
		t.Fatal("automatic reconnect probe never sent")
	}

	storageBefore := backend.hitCount("/quest/storage")

	backend.set(func(b *fakeBackend) {
		b.metricsFail = false
		b.healthy = true
	})
	if !o.Reconnect() {
		t.Fatal("Reconnect() = false while offline, want true")
	}

	waitForPhase(t, o, PhaseOnline)

	// streams resumed
	devicesBefore := backend.hitCount("/devices")
	if !waitUntil(t, 5*time.Second, func() bool { return backend.hitCount("/devices") > devicesBefore }) {
		t.Fatal("fast stream did not resume after reconnect")
	}

	// recovery restarts streams without re-running the initial fetch
	if got := backend.hitCount("/quest/storage"); got != storageBefore {
		t.Errorf("storage polls = %d after reconnect, want %d (no initial refetch)", got, storageBefore)
	}
}

func TestOrchestrator_ReconnectRejectedWhenNotOffline(t *testing.T) {
	backend := newFakeBackend()
	store := state.New(nil, testLogger())
	o := startOrchestrator(t, backend, testConfig(), store)
	waitForPhase(t, o, PhaseOnline)

	if o.Reconnect() {
		t.Error("Reconnect() = true while online, want false")
	}
}

func TestOrchestrator_RunTwiceErrors(t *testing.T) {
	backend := newFakeBackend()
	store := state.New(nil, testLogger())
	o := startOrchestrator(t, backend, testConfig(), store)
	waitForPhase(t, o, PhaseOnline)

	if err := o.Run(context.Background()); err == nil {
		t.Error("second Run() error = nil, want error")
	}
}
