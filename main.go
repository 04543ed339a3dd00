// skyctl builds, deploys and debugs Skyline plugins on a Switch.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"skyctl/cmd"
	skyerr "skyctl/internal/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx, os.Args[1:])
	cancel()
	if err != nil {
		os.Exit(skyerr.ExitCode(err))
	}
}
