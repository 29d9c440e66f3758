package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/linesearch/cmd/linesearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
