package main

import (
	"os"

	"github.com/wolfman30/astracare/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
