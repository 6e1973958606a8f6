// The main package for the recipeharvest executable.
package main

import (
	"github.com/vantran-dev/recipeharvest/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
