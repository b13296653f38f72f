package main

import (
	"os"

	"github.com/spherical/pdf-pages/cmd/pdf-pages/commands"
	"github.com/spherical/pdf-pages/cmd/pdf-pages/ui"
)

func main() {
	if err := commands.NewRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		ui.Error("Error: %v", err)
		os.Exit(1)
	}
}
