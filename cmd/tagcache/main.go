package main

import (
	"os"

	"github.com/Belphemur/tagcache/internal/cli"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
