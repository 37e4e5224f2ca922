// Package inspect provides the optional HTTP server exposing the live
// state tree.
//
// This package is internal to the monitor and handles all HTTP
// concerns:
//
//   - State snapshot: JSON endpoint at "/state" for the full tree
//   - Liveness: JSON endpoint at "/healthz" reporting the lifecycle phase
//   - Server-Sent Events: real-time state changes at "/events"
//
// The server supports graceful shutdown via context cancellation, with
// a 5-second timeout for in-flight requests.
//
// Users of the questmonitor library should not need to interact with
// this package directly. The server is started by [questmonitor.Monitor.Start]
// when an inspect address is configured.
package inspect
