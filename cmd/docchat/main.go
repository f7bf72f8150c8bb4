package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/docchat-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/docchat-cli/internal/app"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// A .env in the working directory is a convenience for local
	// development. Its absence is not an error.
	_ = godotenv.Load()

	application, err := app.New("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "docchat: %v\n", err)
		os.Exit(1)
	}

	if err := cli.Execute(application, version); err != nil {
		os.Exit(1)
	}
}
