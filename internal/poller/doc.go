// Package poller schedules backend polling and feeds results into the
// state store.
//
// This package is internal to the monitor. The main components are:
//
//   - [Stream]: a cancellable, restartable interval loop with panic
//     isolation and non-overlapping runs
//   - [Orchestrator]: composes streams into the monitor lifecycle,
//     moving between booting, online and offline as the backend comes
//     and goes
//
// Users of the questmonitor library should not need to interact with
// this package directly. Configuration is done through the main
// questmonitor package.
package poller
