package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "syncer",
		Short:         "Push local hotel entities to Channex",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		propertyCmd(),
		entityCmd(),
		resolveCmd(),
		mappingsCmd(),
	)

	// on Ctrl-C no new syncs start; the ones already running finish and record their mapping
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
