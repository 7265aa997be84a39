// Package engine opens SQLite databases through the pure-Go
// modernc.org/sqlite driver so the storage backends share one driver
// registration.
package engine
