// The main package for the wbingest executable.
package main

import (
	"github.com/JakeFAU/wb-product-ingest/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
