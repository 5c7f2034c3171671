package main

import (
	"os"

	"github.com/VCasecnikovs/duorec/cmd/duorec/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
