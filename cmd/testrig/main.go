package main

import (
	"os"

	"github.com/roach88/testrig/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
