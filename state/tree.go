package state

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Tree is the in-memory implementation of [Store].
//
// Tree guards the state tree with a mutex, but subscriber callbacks are
// invoked after the lock is released. A callback may therefore call Get,
// Set or Subscribe on the same Tree without deadlocking. Within a single
// Set call the broadcast is synchronous and deterministic: by the time Set
// returns, every matching subscriber has been invoked exactly once, in
// three tiers (exact path, then ancestors walking upward, then wildcard).
// The relative order of broadcasts from concurrent Set calls on different
// goroutines is unspecified.
type Tree struct {
	mu     sync.RWMutex
	root   map[string]any
	subs   map[string][]subscription
	nextID uint64
	logger *slog.Logger
}

// subscription pairs a callback with the identity of its registration so
// that unsubscribing removes exactly one entry.
type subscription struct {
	id uint64
	fn Callback
}

// notification is a single pending callback invocation, captured under the
// lock and delivered after it is released.
type notification struct {
	fn    Callback
	value any
	old   any
	path  string
}

// New creates a [Tree] seeded with the given initial tree.
//
// The initial map declares the fixed schema; the Tree takes ownership of it
// and the caller must not retain references into it. A nil initial map is
// equivalent to an empty tree. A nil logger falls back to [slog.Default].
func New(initial map[string]any, logger *slog.Logger) *Tree {
	if initial == nil {
		initial = make(map[string]any)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{
		root:   initial,
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// Get returns the value at path, or nil if any segment is missing.
// The empty path returns a deep copy of the whole tree.
func (t *Tree) Get(path string) any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if path == "" {
		return copyValue(t.root)
	}
	return copyValue(t.lookupLocked(path))
}

// Snapshot returns a deep copy of the entire tree.
func (t *Tree) Snapshot() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyValue(t.root).(map[string]any)
}

// Set replaces the leaf at path with value and broadcasts the change.
//
// Intermediate containers are created on demand. Set fails, leaving the
// tree untouched, only when an existing intermediate segment holds a
// non-container leaf (for example setting "a.b.c" when "a.b" is a number).
func (t *Tree) Set(path string, value any) error {
	if path == "" {
		return fmt.Errorf("set: path is required")
	}
	segments := strings.Split(path, ".")

	t.mu.Lock()
	node := t.root
	for i, seg := range segments[:len(segments)-1] {
		child, ok := node[seg]
		if !ok || child == nil {
			next := make(map[string]any)
			node[seg] = next
			node = next
			continue
		}
		next, ok := child.(map[string]any)
		if !ok {
			t.mu.Unlock()
			return fmt.Errorf("set %q: segment %q is not a container", path, strings.Join(segments[:i+1], "."))
		}
		node = next
	}

	leaf := segments[len(segments)-1]
	old := node[leaf]
	node[leaf] = value

	pending := t.collectLocked(path, value, old)
	t.mu.Unlock()

	for _, n := range pending {
		t.invoke(n)
	}
	return nil
}

// Subscribe registers fn for changes at path and returns a function that
// removes exactly this registration. A nil callback yields a no-op
// unsubscribe and is never invoked.
func (t *Tree) Subscribe(path string, fn Callback) func() {
	if fn == nil {
		return func() {}
	}

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.subs[path] = append(t.subs[path], subscription{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			list := t.subs[path]
			for i, s := range list {
				if s.id == id {
					t.subs[path] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(t.subs[path]) == 0 {
				delete(t.subs, path)
			}
		})
	}
}

// lookupLocked walks the tree without copying. Caller must hold the lock.
func (t *Tree) lookupLocked(path string) any {
	var current any = t.root
	for _, seg := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = node[seg]
		if !ok {
			return nil
		}
	}
	return current
}

// collectLocked builds the ordered list of pending notifications for a
// change at path: exact subscribers first, then strict ancestors from the
// closest upward, then wildcard subscribers. Ancestor subscribers receive a
// copy of the current subtree at their subscribed path and a nil old value.
// Caller must hold the lock.
func (t *Tree) collectLocked(path string, value, old any) []notification {
	var pending []notification

	for _, s := range t.subs[path] {
		pending = append(pending, notification{fn: s.fn, value: value, old: old, path: path})
	}

	ancestor := path
	for {
		i := strings.LastIndex(ancestor, ".")
		if i < 0 {
			break
		}
		ancestor = ancestor[:i]
		subs := t.subs[ancestor]
		if len(subs) == 0 {
			continue
		}
		current := copyValue(t.lookupLocked(ancestor))
		for _, s := range subs {
			pending = append(pending, notification{fn: s.fn, value: current, old: nil, path: path})
		}
	}

	for _, s := range t.subs[Wildcard] {
		pending = append(pending, notification{fn: s.fn, value: value, old: old, path: path})
	}

	return pending
}

// invoke delivers a single notification with panic recovery. A panicking
// subscriber is logged and never prevents the remaining subscribers from
// running, nor does the panic escape to the caller of Set.
func (t *Tree) invoke(n notification) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("state subscriber panicked",
				"panic", r,
				"path", n.path,
				"correlation_id", uuid.NewString(),
			)
		}
	}()
	n.fn(n.value, n.old, n.path)
}

// copyValue returns a deep copy of maps and slices; scalar values are
// returned as-is.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = copyValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = copyValue(child)
		}
		return out
	default:
		return v
	}
}
