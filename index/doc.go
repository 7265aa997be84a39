// Package index defines the positional vector index used by the archive and
// helpers to persist it through a storage.Store. Implementations in this
// module include an exact brute-force scan.
package index
