// Package storage persists archive artifacts as named blobs.
//
// A Store abstracts the backend so the builder and the query path can run
// against a local directory, an S3 bucket, or a SQLite database without
// change. Backends that can coordinate writers also implement Locker, which
// the builder uses to keep rebuilds single-writer.
package storage
