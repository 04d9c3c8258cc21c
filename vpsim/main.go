// Package main is the entry point of the vpsim command.
package main

import "github.com/sarchlab/vpsim/vpsim/cmd"

func main() {
	cmd.Execute()
}
