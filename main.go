// The main package for the drhp-archiver executable.
package main

import (
	"github.com/JakeFAU/drhp-archiver/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
