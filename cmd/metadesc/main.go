package main

import (
	"os"

	"metadesc/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
