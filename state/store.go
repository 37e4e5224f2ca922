package state

// Wildcard is the reserved subscription path that matches every change.
const Wildcard = "*"

// Callback receives a change notification from the store.
//
// For exact-path and wildcard subscribers, value is the newly written value
// and old is the value it replaced (nil when the leaf did not exist before).
// For ancestor subscribers, value is the current subtree at the subscribed
// path and old is always nil. In every case path is the full dot-delimited
// path that was written, not the subscribed path.
type Callback func(value, old any, path string)

// Store defines path-addressed access to a hierarchical state tree with
// publish/subscribe semantics.
//
// Paths are dot-delimited strings such as "devices.pc.metrics.cpu". The tree
// schema is declared once at construction; afterwards only leaf values
// change. Store implementations must be safe for concurrent access.
type Store interface {
	// Get returns the value at path, or nil if any segment of the path is
	// missing. The empty path returns the entire tree. Get never fails:
	// absent paths yield nil rather than an error.
	//
	// Container values (maps, slices) are returned as deep copies;
	// mutating them does not affect the store.
	Get(path string) any

	// Set replaces the leaf at path with value, creating intermediate
	// containers as needed, and then notifies subscribers. It returns an
	// error only when an intermediate segment resolves to an existing
	// non-container leaf; the tree is left untouched in that case.
	Set(path string, value any) error

	// Subscribe registers fn for changes at path. The [Wildcard] path
	// subscribes to every change. Registering the same callback twice
	// fires it twice. The returned function removes exactly this
	// registration; calling it more than once is a no-op.
	Subscribe(path string, fn Callback) (unsubscribe func())

	// Snapshot returns a deep copy of the entire tree.
	Snapshot() map[string]any
}
