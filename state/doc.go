// Package state provides the hierarchical, path-addressed state tree that
// the polling engine writes into and UI layers subscribe to.
//
// Values are addressed by dot-delimited paths ("devices.pc.metrics.cpu").
// Reads never fail: a missing segment yields nil. Writes replace leaf
// values, creating intermediate containers on demand, and synchronously
// broadcast the change in three tiers:
//
//  1. subscribers registered at the exact path, in registration order
//  2. subscribers registered at strict ancestor paths, closest first,
//     which receive the current subtree at their path and no old value
//  3. wildcard ("*") subscribers
//
// The main components are:
//
//   - [Store]: interface defining tree access and subscription operations
//   - [Tree]: the in-memory implementation
//   - [Callback]: the subscriber function signature
//
// Subscriber callbacks run synchronously inside Set, after internal locks
// are released, so callbacks may freely call back into the store. A
// panicking callback is recovered and logged; it never aborts sibling
// notifications and never propagates out of Set.
package state
