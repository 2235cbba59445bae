package main

import (
	"os"

	"github.com/courierhq/dispatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
