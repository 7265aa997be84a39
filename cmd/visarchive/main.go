// Command visarchive builds and searches a visual archive of images.
//
// Usage:
//
//	visarchive [flags] <command> [args]
//
// Commands:
//
//	build    - embed and tag every image in the source directory
//	search   - rank archived images by similarity to an image
//	tags     - list the tags present in the archive
//	curate   - describe the closest matches in plain words
//	serve    - run the HTTP API
//	version  - print version information
package main

import (
	"fmt"
	"os"

	"github.com/viant/visual-archive/cmd/visarchive/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
