// The main package for the filesure executable.
package main

import (
	"github.com/Anjan854/filesure-devops-starter/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
