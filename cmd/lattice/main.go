package main

import (
	"os"

	"github.com/pterm/pterm"

	"github.com/gear6io/lattice/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}
