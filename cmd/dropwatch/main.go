package main

import (
	"os"

	"github.com/MEKXH/dropwatch/cmd/dropwatch/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
