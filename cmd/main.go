package main

import (
	"os"

	"github.com/mitjasha/Qui3zBot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
