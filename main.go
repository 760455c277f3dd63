// The main package for the mapleads executable.
package main

import (
	"github.com/mapleads/mapleads/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
