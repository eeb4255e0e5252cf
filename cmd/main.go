package main

import (
	"os"

	"github.com/aeonchain/aeon/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
