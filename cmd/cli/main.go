package main

import (
	"os"

	"github.com/employd-dev/employd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
