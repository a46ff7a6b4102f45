package main

import (
	"os"

	"github.com/Alpha162/armoured-candles/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
