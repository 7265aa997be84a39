// Package record holds the per-image metadata of an archive. Records are kept
// in ingestion order so that record i describes the vector at index position
// i, and persist as a human-readable JSON array of objects.
package record
