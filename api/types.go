package api

import "encoding/json"

// Device identifiers used by the backend. The monitored pair is fixed.
const (
	DevicePC    = "pc"
	DeviceQuest = "quest_3"
)

// Connection modes and priorities accepted by the connection endpoints.
const (
	ModeUSB      = "usb"
	ModeWireless = "wireless"

	PriorityUSBFirst      = "usb_first"
	PriorityWirelessFirst = "wireless_first"
	PriorityAuto          = "auto"
)

// envelope is the uniform response wrapper used by every backend endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *envelopeError  `json:"error"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthStatus is the health probe payload.
type HealthStatus struct {
	Status         string `json:"status"`
	Timestamp      int64  `json:"timestamp"`
	BackendVersion string `json:"backend_version"`
}

// Device describes one monitored device and its connection state.
type Device struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	ConnectedAt *int64 `json:"connected_at"`
	LastUpdate  *int64 `json:"last_update"`
	Error       string `json:"error"`
}

// MetricSample is a single point-in-time reading for one device. Fields
// that do not apply to a device are nil: temp and battery are Quest-only,
// disk and disk_total are PC-only.
type MetricSample struct {
	DeviceID  string   `json:"device_id"`
	Timestamp int64    `json:"timestamp"`
	CPU       *float64 `json:"cpu"`
	RAM       *float64 `json:"ram"`
	RAMTotal  *float64 `json:"ram_total"`
	Temp      *float64 `json:"temp"`
	Battery   *float64 `json:"battery"`
	Disk      *float64 `json:"disk"`
	DiskTotal *float64 `json:"disk_total"`
	SessionID string   `json:"session_id"`
}

// BatteryStats carries the Quest charge rate and time estimate derived by
// the backend from recent battery history.
type BatteryStats struct {
	ChargeRate   float64 `json:"charge_rate"`
	ETAMinutes   *int    `json:"eta_minutes"`
	ETAText      string  `json:"eta_text"`
	IsCharging   bool    `json:"is_charging"`
	CurrentLevel float64 `json:"current_level"`
}

// CurrentMetrics is the /metrics/current payload: the latest sample per
// device plus battery statistics. A nil sample means the backend had no
// reading for that device.
type CurrentMetrics struct {
	Timestamp    int64         `json:"timestamp"`
	PC           *MetricSample `json:"pc"`
	Quest        *MetricSample `json:"quest_3"`
	BatteryStats *BatteryStats `json:"battery_stats"`
}

// HistoryPoint is one timestamped value in a metric history series.
type HistoryPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// MetricsHistory is the /metrics/history payload for one device/metric.
type MetricsHistory struct {
	Device          string         `json:"device"`
	Metric          string         `json:"metric"`
	TimespanMinutes int            `json:"timespan_minutes"`
	Data            []HistoryPoint `json:"data"`
	Min             *float64       `json:"min"`
	Max             *float64       `json:"max"`
	Avg             *float64       `json:"avg"`
}

// DeviceNetworkStats is the per-device throughput reading. ConnectionType
// is set for the Quest only ("usb" or "wireless").
type DeviceNetworkStats struct {
	DownloadMbps    float64 `json:"download_mbps"`
	UploadMbps      float64 `json:"upload_mbps"`
	AvgDownload5Min float64 `json:"avg_download_5min"`
	AvgUpload5Min   float64 `json:"avg_upload_5min"`
	Status          string  `json:"status"`
	ConnectionType  string  `json:"connection_type,omitempty"`
}

// NetworkStats is the /metrics/network payload. A nil entry means the
// backend could not read that device.
type NetworkStats struct {
	PC    *DeviceNetworkStats `json:"pc"`
	Quest *DeviceNetworkStats `json:"quest_3"`
}

// StorageInfo is the Quest storage usage payload.
type StorageInfo struct {
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	FreeGB      float64 `json:"free_gb"`
	PercentUsed float64 `json:"percent_used"`
}

// Disk describes one PC disk, including whether it is selected for
// monitoring.
type Disk struct {
	MountPoint  string  `json:"mount_point"`
	Device      string  `json:"device"`
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	FreeGB      float64 `json:"free_gb"`
	PercentUsed float64 `json:"percent_used"`
	IsSelected  bool    `json:"is_selected"`
}

// RecordingSession is returned when a recording session starts.
type RecordingSession struct {
	SessionID string `json:"session_id"`
	StartTime int64  `json:"start_time"`
	Name      string `json:"name"`
}

// RecordingSummary is returned when a recording session stops.
type RecordingSummary struct {
	SessionID       string   `json:"session_id"`
	DurationSeconds int64    `json:"duration_seconds"`
	SampleCount     int      `json:"sample_count"`
	EndTime         int64    `json:"end_time"`
	DevicesRecorded []string `json:"devices_recorded"`
}

// RecordingStatus reports whether a session is currently recording.
type RecordingStatus struct {
	Recording      bool   `json:"recording"`
	SessionID      string `json:"session_id"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	StartTime      *int64 `json:"start_time"`
}

// ExportResult is returned when a session export is saved server-side.
type ExportResult struct {
	Exported bool   `json:"exported"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// ConnectionStatus is the /connection/status payload describing how the
// Quest is linked to the PC.
type ConnectionStatus struct {
	State             string   `json:"state"`
	Mode              string   `json:"mode"`
	USBConnected      bool     `json:"usb_connected"`
	USBSerial         string   `json:"usb_serial"`
	WirelessConnected bool     `json:"wireless_connected"`
	WirelessIP        string   `json:"wireless_ip"`
	WirelessPort      int      `json:"wireless_port"`
	Priority          string   `json:"priority"`
	LatencyMs         *float64 `json:"latency_ms"`
	Quality           string   `json:"quality"`
	ActiveSerial      string   `json:"active_serial"`
	CanSwitchTo       []string `json:"can_switch_to"`
	UserMessage       string   `json:"user_message"`
}

// ConnectionEvent is one entry from /connection/events, used by UI layers
// for toast notifications.
type ConnectionEvent struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Mode      string `json:"mode"`
}

// SwitchResult is returned by /connection/switch.
type SwitchResult struct {
	Switched bool   `json:"switched"`
	Mode     string `json:"mode"`
}

// WirelessResult is returned by /connection/enable-wireless.
type WirelessResult struct {
	Enabled bool   `json:"enabled"`
	IP      string `json:"ip"`
	Port    int    `json:"port"`
}

// LatencyResult is returned by /connection/latency.
type LatencyResult struct {
	LatencyMs float64 `json:"latency_ms"`
	Quality   string  `json:"quality"`
}

// DiscoverResult is returned by /connection/discover and /connection/scan.
type DiscoverResult struct {
	Discovered bool   `json:"discovered"`
	Found      bool   `json:"found"`
	IP         string `json:"ip"`
}

// SettingValue is one key/value pair from the settings endpoints.
type SettingValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SettingsUpdate is returned by a bulk settings update.
type SettingsUpdate struct {
	Updated  bool           `json:"updated"`
	Settings map[string]any `json:"settings"`
}
