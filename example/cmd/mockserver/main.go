// Standalone mock backend for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/questmon watch -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock backend starting on :8099")
	fmt.Println("Simulates a 4s outage every ~60s")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu        sync.Mutex
		startedAt = time.Now().Unix()

		cpuPC   = 30.0
		battery = 82.0

		downUntil  time.Time
		nextOutage = time.Now().Add(60 * time.Second)
	)

	down := func() bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.Before(downUntil) {
			return true
		}
		if now.After(nextOutage) {
			downUntil = now.Add(4 * time.Second)
			nextOutage = now.Add(time.Duration(50+rand.Intn(31)) * time.Second)
			slog.Info("simulating outage", "duration", "4s")
			return true
		}
		return false
	}

	writeData := func(w http.ResponseWriter, data any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}

	writeOutage := func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]string{"code": "INTERNAL_ERROR", "message": "simulated outage"},
		})
	}

	handle := func(path string, data func() any) {
		http.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if down() {
				writeOutage(w)
				return
			}
			writeData(w, data())
		})
	}

	handle("/health", func() any {
		return map[string]any{"status": "ok", "timestamp": time.Now().Unix(), "backend_version": "mock-1.0"}
	})

	handle("/devices", func() any {
		now := time.Now().Unix()
		return map[string]any{"devices": []map[string]any{
			{"id": "pc", "name": "Desktop", "status": "connected", "connected_at": startedAt, "last_update": now},
			{"id": "quest_3", "name": "Quest 3", "status": "connected", "connected_at": startedAt, "last_update": now},
		}}
	})

	handle("/connection/status", func() any {
		return map[string]any{
			"state": "connected", "mode": "usb",
			"usb_connected": true, "usb_serial": "MOCK123456",
			"wireless_connected": false, "wireless_ip": "", "wireless_port": 0,
			"priority": "usb_first", "latency_ms": 2 + rand.Float64()*5,
			"quality": "excellent", "active_serial": "MOCK123456",
			"can_switch_to": []string{"wireless"}, "user_message": "",
		}
	})

	handle("/metrics/current", func() any {
		mu.Lock()
		cpuPC += rand.Float64()*8 - 4
		if cpuPC < 5 {
			cpuPC = 5
		}
		if cpuPC > 95 {
			cpuPC = 95
		}
		battery -= 0.1
		if battery < 20 {
			battery = 82
		}
		cpu, level := cpuPC, battery
		mu.Unlock()

		now := time.Now().Unix()
		return map[string]any{
			"timestamp": now,
			"pc": map[string]any{
				"device_id": "pc", "timestamp": now,
				"cpu": cpu, "ram": 45.0, "ram_total": 32768.0,
				"disk": 61.2, "disk_total": 953.9,
			},
			"quest_3": map[string]any{
				"device_id": "quest_3", "timestamp": now,
				"cpu": 20 + rand.Float64()*10, "ram": 55.0, "ram_total": 12288.0,
				"temp": 36 + rand.Float64()*3, "battery": level,
			},
			"battery_stats": map[string]any{
				"charge_rate": -0.3, "eta_minutes": int((level - 15) / 0.3),
				"eta_text": "draining", "is_charging": false, "current_level": level,
			},
		}
	})

	handle("/metrics/network", func() any {
		return map[string]any{
			"pc": map[string]any{
				"download_mbps": 90 + rand.Float64()*40, "upload_mbps": 20 + rand.Float64()*15,
				"avg_download_5min": 105.0, "avg_upload_5min": 27.0, "status": "active",
			},
			"quest_3": map[string]any{
				"download_mbps": 300 + rand.Float64()*150, "upload_mbps": 150 + rand.Float64()*80,
				"avg_download_5min": 370.0, "avg_upload_5min": 190.0,
				"status": "active", "connection_type": "usb",
			},
		}
	})

	handle("/quest/storage", func() any {
		return map[string]any{
			"total_gb": 256.0, "used_gb": 87.4, "free_gb": 168.6, "percent_used": 34.1,
		}
	})

	if err := http.ListenAndServe(":8099", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
