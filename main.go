package main

import (
	"os"

	"github.com/Entervio/entervio/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
