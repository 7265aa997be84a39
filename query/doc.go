// Package query answers "what in the archive looks like this image?".
//
// The Engine embeds the query image, retrieves a fixed number of nearest
// candidates from the archive index, and only then applies the optional tag
// filter. A restrictive filter can therefore return fewer matches than exist
// further down the full ranking, or none at all; that case is reported as an
// EmptyResult with ReasonFiltered so callers can tell it apart from an empty
// archive.
package query
