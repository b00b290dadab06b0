package main

import (
	"os"

	"github.com/liEric123/AutoOncallSupervisor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
