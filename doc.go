// Package questmonitor provides a resilient client-side sync engine for
// a PC and Quest headset resource-monitoring backend.
//
// The monitor polls the backend REST API on two cadences, mirrors every
// observed value into a hierarchical state tree, and notifies
// subscribers about changes. It is designed as an SDK-first library:
// applications embed a [Monitor], subscribe to the paths they care
// about, and render or react however they like.
//
// # Quick Start
//
// Create a monitor and start it with graceful shutdown:
//
//	m, _ := questmonitor.New("http://127.0.0.1:8080")
//
//	m.Subscribe("devices.pc.metrics.cpu", func(value, old any, path string) {
//	    fmt.Printf("cpu: %v%%\n", value)
//	})
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until context is cancelled
//
// # State Paths
//
// Backend state lands in the tree under fixed dot-separated paths:
//
//	system.phase                        monitor lifecycle phase
//	system.online                       true while polling runs
//	system.storage.*                    headset storage usage
//	devices.<id>.status                 device connection status
//	devices.<id>.metrics.*              cpu, ram, temp, battery, disk
//	devices.<id>.network.*              throughput and averages
//	devices.quest_3.battery.*           charge rate and ETA
//	connection.*                        USB/wireless link state
//
// Subscriptions address the same paths: an exact path fires for that
// value, an ancestor path fires for any change underneath it, and
// [Wildcard] fires for everything. See [state.Tree] for the exact
// notification contract.
//
// # Configuration
//
// questmonitor uses the functional options pattern for configuration:
//
//	m, err := questmonitor.New("http://127.0.0.1:8080",
//	    questmonitor.WithFastInterval(time.Second),
//	    questmonitor.WithSlowInterval(5 * time.Second),
//	    questmonitor.WithRequestTimeout(3 * time.Second),
//	    questmonitor.WithChangeCallback("system.online", onOnline),
//	)
//
// YAML file configuration is available through the config package,
// which translates a parsed file into the same options.
//
// # Architecture
//
// questmonitor consists of a public state package and several internal
// packages:
//
//   - state: hierarchical path-addressed store with three-tier change
//     broadcast
//   - api: typed backend client with retry, backoff and failure
//     classification
//   - internal/poller: poll streams and the lifecycle orchestrator
//   - internal/inspect: optional HTTP server exposing the live tree
//
// The internal packages are not part of the public API and may change
// without notice.
package questmonitor
