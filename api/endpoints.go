package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Health fetches the backend health probe payload. Unlike [Client.Probe]
// this uses the full retry policy and returns the decoded status.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.get(ctx, "/health", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Devices lists all monitored devices and their connection state.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var payload struct {
		Devices []Device `json:"devices"`
	}
	if err := c.get(ctx, "/devices", &payload); err != nil {
		return nil, err
	}
	return payload.Devices, nil
}

// Device fetches a single device by id ([DevicePC] or [DeviceQuest]).
func (c *Client) Device(ctx context.Context, id string) (*Device, error) {
	var device Device
	if err := c.get(ctx, "/devices/"+url.PathEscape(id), &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// DeviceInfo fetches extended hardware details for a device. The shape
// varies per device type, so the payload stays a generic map.
func (c *Client) DeviceInfo(ctx context.Context, id string) (map[string]any, error) {
	var info map[string]any
	if err := c.get(ctx, "/devices/"+url.PathEscape(id)+"/info", &info); err != nil {
		return nil, err
	}
	return info, nil
}

// CurrentMetrics fetches the latest metric sample for every device. When
// fresh is true the backend collects a new sample instead of serving the
// cached one.
func (c *Client) CurrentMetrics(ctx context.Context, fresh bool) (*CurrentMetrics, error) {
	endpoint := "/metrics/current"
	if fresh {
		endpoint += "?fresh=true"
	}
	var metrics CurrentMetrics
	if err := c.get(ctx, endpoint, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

// MetricsHistory fetches the recorded samples of one metric for one
// device over the trailing timespan.
func (c *Client) MetricsHistory(ctx context.Context, device, metric string, minutes int) (*MetricsHistory, error) {
	query := url.Values{}
	query.Set("device", device)
	query.Set("metric", metric)
	query.Set("minutes", strconv.Itoa(minutes))

	var history MetricsHistory
	if err := c.get(ctx, "/metrics/history?"+query.Encode(), &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// NetworkStats fetches current network throughput for all devices.
func (c *Client) NetworkStats(ctx context.Context) (*NetworkStats, error) {
	var stats NetworkStats
	if err := c.get(ctx, "/metrics/network", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// QuestStorage fetches storage usage of the headset.
func (c *Client) QuestStorage(ctx context.Context) (*StorageInfo, error) {
	var info StorageInfo
	if err := c.get(ctx, "/quest/storage", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Disks lists the host's disks with usage and selection state.
func (c *Client) Disks(ctx context.Context) ([]Disk, error) {
	var payload struct {
		Disks []Disk `json:"disks"`
	}
	if err := c.get(ctx, "/disks", &payload); err != nil {
		return nil, err
	}
	return payload.Disks, nil
}

// SelectDisk enables or disables monitoring of the disk mounted at
// mountPoint.
func (c *Client) SelectDisk(ctx context.Context, mountPoint string, selected bool) error {
	body := map[string]any{"mount_point": mountPoint, "is_selected": selected}
	return c.post(ctx, "/disks/select", body, nil)
}

// DiskMetrics fetches usage for the currently selected disk.
func (c *Client) DiskMetrics(ctx context.Context) (*Disk, error) {
	var disk Disk
	if err := c.get(ctx, "/disks/metrics", &disk); err != nil {
		return nil, err
	}
	return &disk, nil
}

// StartRecording begins a named metric recording session.
func (c *Client) StartRecording(ctx context.Context, name string) (*RecordingSession, error) {
	body := map[string]string{"name": name}
	var session RecordingSession
	if err := c.post(ctx, "/recording/start", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// StopRecording ends the active recording session.
func (c *Client) StopRecording(ctx context.Context) (*RecordingSummary, error) {
	var summary RecordingSummary
	if err := c.post(ctx, "/recording/stop", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// RecordingStatus reports whether a recording session is active.
func (c *Client) RecordingStatus(ctx context.Context) (*RecordingStatus, error) {
	var status RecordingStatus
	if err := c.get(ctx, "/recording/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ExportRecording exports a finished session in the given format ("json"
// or "csv"). With saveToDisk the backend writes the file to its exports
// directory; otherwise the payload is returned inline.
func (c *Client) ExportRecording(ctx context.Context, sessionID, format string, saveToDisk bool) (*ExportResult, error) {
	query := url.Values{}
	query.Set("session_id", sessionID)
	query.Set("format", format)
	query.Set("save_to_disk", strconv.FormatBool(saveToDisk))

	var result ExportResult
	if err := c.get(ctx, "/recording/export?"+query.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ConnectionStatus fetches the headset's transport state (USB or
// wireless, quality, latency).
func (c *Client) ConnectionStatus(ctx context.Context) (*ConnectionStatus, error) {
	var status ConnectionStatus
	if err := c.get(ctx, "/connection/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SwitchConnection moves the headset link to the given mode ([ModeUSB]
// or [ModeWireless]).
func (c *Client) SwitchConnection(ctx context.Context, mode string) (*SwitchResult, error) {
	body := map[string]string{"mode": mode}
	var result SwitchResult
	if err := c.post(ctx, "/connection/switch", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EnableWireless switches the headset's debug bridge into TCP/IP mode so
// wireless connections become possible. Requires a USB link.
func (c *Client) EnableWireless(ctx context.Context) (*WirelessResult, error) {
	var result WirelessResult
	if err := c.post(ctx, "/connection/enable-wireless", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetConnectionPriority sets which transport the backend prefers when
// both are available.
func (c *Client) SetConnectionPriority(ctx context.Context, priority string) error {
	body := map[string]string{"priority": priority}
	return c.post(ctx, "/connection/priority", body, nil)
}

// MeasureLatency measures round-trip latency of the active link.
func (c *Client) MeasureLatency(ctx context.Context) (*LatencyResult, error) {
	var result LatencyResult
	if err := c.get(ctx, "/connection/latency", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DiscoverQuest asks the backend to find the headset's wireless address
// from its USB-reported network configuration.
func (c *Client) DiscoverQuest(ctx context.Context) (*DiscoverResult, error) {
	var result DiscoverResult
	if err := c.post(ctx, "/connection/discover", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ScanNetwork sweeps the local subnet for a reachable headset debug
// port. Slower than [Client.DiscoverQuest] but works without USB.
func (c *Client) ScanNetwork(ctx context.Context) (*DiscoverResult, error) {
	var result DiscoverResult
	if err := c.post(ctx, "/connection/scan", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ConnectionEvents fetches the recent connection event log, newest
// first. With clear the backend drops the events after serving them, so
// each call only sees what happened since the previous one.
func (c *Client) ConnectionEvents(ctx context.Context, clear bool) ([]ConnectionEvent, error) {
	var payload struct {
		Events []ConnectionEvent `json:"events"`
	}
	endpoint := "/connection/events?clear=" + strconv.FormatBool(clear)
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Events, nil
}

// Settings fetches all persisted settings.
func (c *Client) Settings(ctx context.Context) (map[string]any, error) {
	var settings map[string]any
	if err := c.get(ctx, "/settings", &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings persists several settings at once.
func (c *Client) UpdateSettings(ctx context.Context, settings map[string]any) (*SettingsUpdate, error) {
	var result SettingsUpdate
	if err := c.post(ctx, "/settings", settings, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Setting fetches a single setting by key.
func (c *Client) Setting(ctx context.Context, key string) (*SettingValue, error) {
	var value SettingValue
	if err := c.get(ctx, "/settings/"+url.PathEscape(key), &value); err != nil {
		return nil, err
	}
	return &value, nil
}

// SetSetting persists a single setting.
func (c *Client) SetSetting(ctx context.Context, key string, value any) error {
	body := map[string]any{"value": value}
	return c.post(ctx, fmt.Sprintf("/settings/%s", url.PathEscape(key)), body, nil)
}
