// Package store defines the aggregate persistence interface for
// execution records and checkpoints. Backends: Bun (Postgres), Redis,
// and Memory.
package store
