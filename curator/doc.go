// Package curator turns archive queries into short conversational replies.
package curator
