package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	questmonitor "github.com/Syaviii/Quest-Resource-Monitor"
)

func main() {
	// start mock backend (see mock_server.go)
	go StartMockBackend(":8099")
	time.Sleep(100 * time.Millisecond)

	// compressed intervals so the demo shows activity quickly; the mock
	// backend simulates a short outage every minute or so, which walks
	// the monitor through the offline and reconnect phases
	m, err := questmonitor.New("http://localhost:8099",
		questmonitor.WithFastInterval(1*time.Second),
		questmonitor.WithSlowInterval(3*time.Second),
		questmonitor.WithHeavyCycle(4),
		questmonitor.WithReconnectDelay(6*time.Second),
		questmonitor.WithInspectAddr("127.0.0.1:9000"),
		questmonitor.WithChangeCallback("system.online", func(value, old any, path string) {
			fmt.Printf(">> backend online: %v\n", value)
		}),
		questmonitor.WithChangeCallback("devices.quest_3.metrics.battery", func(value, old any, path string) {
			fmt.Printf(">> quest battery: %.1f%%\n", value)
		}),
		questmonitor.WithChangeCallback("connection.mode", func(value, old any, path string) {
			fmt.Printf(">> connection mode: %v (was %v)\n", value, old)
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Quest Resource Monitor Demo                         ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Mock backend:  http://localhost:8099                ║")
	fmt.Println("  ║   State:         http://127.0.0.1:9000/state         ║")
	fmt.Println("  ║   Live events:   http://127.0.0.1:9000/events        ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Watch for the simulated outage every ~60s           ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		slog.Error("monitor error", "error", err)
		os.Exit(1)
	}
}
