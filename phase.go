package questmonitor

// Phase represents the monitor's lifecycle state.
//
// Phase is a string type that can hold one of three predefined values:
// [PhaseBooting], [PhaseOnline], or [PhaseOffline]. Using a string type
// allows for easy JSON serialization and human-readable logging while
// maintaining type safety through the defined constants.
//
// The phase moves through a fixed lifecycle:
//
//	booting -> online:  the backend answered a health probe and the
//	                    initial state fetch ran
//	online -> offline:  a failed metrics poll was confirmed by a failed
//	                    health probe
//	offline -> online:  a reconnect probe succeeded (one automatic probe
//	                    after the reconnect delay, then manual via
//	                    [Monitor.Reconnect])
//
// The current phase is also mirrored into the state tree under
// "system.phase", so subscribers can react to transitions.
type Phase string

const (
	// PhaseBooting indicates the backend has not answered a health
	// probe yet. Health probes repeat until one succeeds.
	PhaseBooting Phase = "booting"

	// PhaseOnline indicates the poll streams are running and the state
	// tree is being kept in sync with the backend.
	PhaseOnline Phase = "online"

	// PhaseOffline indicates a confirmed backend failure stopped all
	// polling. The state tree keeps its last known values.
	PhaseOffline Phase = "offline"
)

// String returns the string representation of the phase.
// This implements the fmt.Stringer interface.
func (p Phase) String() string {
	return string(p)
}
