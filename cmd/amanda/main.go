package main

import (
	"fmt"
	"os"

	"github.com/Suggestic/amanda-scrapping/internal/app"
	"github.com/Suggestic/amanda-scrapping/internal/cli"
	"github.com/Suggestic/amanda-scrapping/internal/observability"
)

func main() {
	ctx, cancel := app.GracefulShutdown(observability.NewLogger("", "info", 0, 0))
	defer cancel()

	root := cli.NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
