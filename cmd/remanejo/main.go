package main

import (
	"os"

	"remanejo/cmd/remanejo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
