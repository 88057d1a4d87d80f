// The main package for the leadharvest executable.
package main

import (
	"github.com/leadharvest/leadharvest/cmd"
)

func main() {
	cmd.Execute()
}
