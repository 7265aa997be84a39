// Package server exposes archive search over HTTP with fiber.
//
// Routes:
//
//	POST /v1/search   multipart "image", optional "tags" (repeated or comma separated) and "k"
//	POST /v1/curate   multipart "image"; returns a conversational reply with the matches
//	GET  /v1/tags     distinct archive tags for filter choices
//	POST /v1/reload   reopen the archive after a rebuild
//	GET  /healthz     liveness and archive size
package server
