package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// StartMockBackend runs a mock resource-monitor backend with drifting
// synthetic metrics. Every 45-75 seconds it simulates a short outage so
// the offline/reconnect cycle can be observed.
// Call this in a goroutine before starting the monitor.
func StartMockBackend(addr string) {
	var (
		mu        sync.Mutex
		startedAt = time.Now().Unix()

		cpuPC     = 32.0
		cpuQuest  = 18.0
		ramPC     = 41.0
		ramQuest  = 55.0
		tempQuest = 36.5
		battery   = 78.0
		charging  = false

		storageUsed = 87.4

		mode           = "usb"
		nextModeSwitch = time.Now().Add(time.Duration(40+rand.Intn(61)) * time.Second)

		downUntil  time.Time
		nextOutage = time.Now().Add(45 * time.Second)
	)

	walk := func(v, amp, min, max float64) float64 {
		v += rand.Float64()*2*amp - amp
		if v < min {
			return min
		}
		if v > max {
			return max
		}
		return v
	}

	// down reports whether the simulated outage window is active, and
	// advances the outage schedule.
	down := func() bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.Before(downUntil) {
			return true
		}
		if now.After(nextOutage) {
			downUntil = now.Add(4 * time.Second)
			nextOutage = now.Add(time.Duration(45+rand.Intn(31)) * time.Second)
			slog.Info("simulating outage", "duration", "4s")
			return true
		}
		return false
	}

	writeData := func(w http.ResponseWriter, data any) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	}

	writeOutage := func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]string{"code": "INTERNAL_ERROR", "message": "simulated outage"},
		})
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if down() {
			writeOutage(w)
			return
		}
		writeData(w, map[string]any{
			"status":          "ok",
			"timestamp":       time.Now().Unix(),
			"backend_version": "mock-1.0",
		})
	})

	http.HandleFunc("/devices", func(w http.ResponseWriter, r *http.Request) {
		if down() {
			writeOutage(w)
			return
		}
		now := time.Now().Unix()
		writeData(w, map[string]any{"devices": []map[string]any{
			{"id": "pc", "name": "Desktop", "status": "connected", "connected_at": startedAt, "last_update": now},
			{"id": "quest_3", "name": "Quest 3", "status": "connected", "connected_at": startedAt, "last_update": now},
		}})
	})

	http.HandleFunc("/connection/status", func(w http.ResponseWriter, r *http.Request) {
		if down() {
			writeOutage(w)
			return
		}

		mu.Lock()
		if time.Now().After(nextModeSwitch) {
			oldMode := mode
			if mode == "usb" {
				mode = "wireless"
			} else {
				mode = "usb"
			}
			nextModeSwitch = time.Now().Add(time.Duration(40+rand.Intn(61)) * time.Second)
			slog.Info("connection mode change", "from", oldMode, "to", mode)
		}
		currentMode := mode
		mu.Unlock()

		latency := 2.0 + rand.Float64()*7
		quality := "good"
		if latency < 5 {
			quality = "excellent"
		}
		other := "usb"
		if currentMode == "usb" {
			other = "wireless"
		}
		writeData(w, map[string]any{
			"state":              "connected",
			"mode":               currentMode,
			"usb_connected":      true,
			"usb_serial":         "MOCK123456",
			"wireless_connected": true,
			"wireless_ip":        "192.168.1.42",
			"wireless_port":      5555,
			"priority":           "usb_first",
			"latency_ms":         latency,
			"quality":            quality,
			"active_serial":      "MOCK123456",
			"can_switch_to":      []string{other},
			"user_message":       "",
		})
	})

	http.HandleFunc("/metrics/current", func(w http.ResponseWriter, r *http.Request) {
		if down() {
			writeOutage(w)
			return
		}

		mu.Lock()
		cpuPC = walk(cpuPC, 4, 5, 95)
		cpuQuest = walk(cpuQuest, 3, 3, 85)
		ramPC = walk(ramPC, 2, 20, 90)
		ramQuest = walk(ramQuest, 2, 30, 92)
		tempQuest = walk(tempQuest, 0.8, 30, 46)

		if charging {
			battery += 0.4
			if battery >= 95 {
				battery = 95
				charging = false
				slog.Info("battery full, unplugging")
			}
		} else {
			battery -= 0.15
			if battery <= 18 {
				charging = true
				slog.Info("battery low, charging")
			}
		}

		chargeRate := -0.3
		etaMinutes := int((battery - 15) / 0.3)
		etaText := fmt.Sprintf("%dm until 15%%", etaMinutes)
		if charging {
			chargeRate = 0.8
			etaMinutes = int((95 - battery) / 0.8)
			etaText = fmt.Sprintf("%dm until full", etaMinutes)
		}

		now := time.Now().Unix()
		data := map[string]any{
			"timestamp": now,
			"pc": map[string]any{
				"device_id": "pc", "timestamp": now,
				"cpu": cpuPC, "ram": ramPC, "ram_total": 32768.0,
				"disk": 61.2, "disk_total": 953.9,
			},
			"quest_3": map[string]any{
				"device_id": "quest_3", "timestamp": now,
				"cpu": cpuQuest, "ram": ramQuest, "ram_total": 12288.0,
				"temp": tempQuest, "battery": battery,
			},
			"battery_stats": map[string]any{
				"charge_rate":   chargeRate,
				"eta_minutes":   etaMinutes,
				"eta_text":      etaText,
				"is_charging":   charging,
				"current_level": battery,
			},
		}
		mu.Unlock()

		writeData(w, data)
	})

	http.HandleFunc("/metrics/network", func(w http.ResponseWriter, r *http.Request) {
		if down() {
			writeOutage(w)
			return
		}

		mu.Lock()
		connType := mode
		mu.Unlock()

		writeData(w, map[string]any{
			"pc": map[string]any{
				"download_mbps": 90 + rand.Float64()*40, "upload_mbps": 20 + rand.Float64()*15,
				"avg_download_5min": 105.0, "avg_upload_5min": 27.0,
				"status": "active",
			},
			"quest_3": map[string]any{
				"download_mbps": 300 + rand.Float64()*150, "upload_mbps": 150 + rand.Float64()*80,
				"avg_download_5min": 370.0, "avg_upload_5min": 190.0,
				"status": "active", "connection_type": connType,
			},
		})
	})

	http.HandleFunc("/quest/storage", func(w http.ResponseWriter, r *http.Request) {
		if down() {
			writeOutage(w)
			return
		}

		mu.Lock()
		storageUsed += 0.05
		if storageUsed > 240 {
			storageUsed = 240
		}
		used := storageUsed
		mu.Unlock()

		writeData(w, map[string]any{
			"total_gb":     256.0,
			"used_gb":      used,
			"free_gb":      256.0 - used,
			"percent_used": used / 256.0 * 100,
		})
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock backend error", "error", err)
	}
}
