// Package cache provides the key-value store that carries count snapshots
// from one run to the next.
//
// The store is a black box with two operations, Get and Set. Three
// backends implement it:
//
//   - sqlite: a single SQLite file (default), WAL mode
//   - badger: an embedded BadgerDB directory
//   - memory: process-local, for tests
//
// # SQLite Configuration
//
//   - WAL mode: readers do not block the single writer
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// A write replaces the previous value of its key. No history or wall-clock
// timestamps are kept.
package cache
