package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/catalog/internal/cli"
)

func runWorker(args []string) int {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	once := fs.Bool("once", false, "Process one batch of due jobs and exit")
	shutdownTimeout := fs.Duration("shutdown-timeout", 30*time.Second, "Time to wait for running jobs on shutdown")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "worker does not accept positional arguments")
		return 2
	}

	cfg, logger, err := loadEnvironment(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	rt, err := openRuntime(dbCtx, cfg, logger, runtimeOptions{})
	if err != nil {
		logger.Error().Err(err).Msg("worker failed to start")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	worker, err := rt.newWorker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create translation worker: %v\n", err)
		return 1
	}

	ctx, cancel := signalContext()
	defer cancel()

	stop := func() int {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer stopCancel()
		if err := worker.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("translation worker shutdown failed")
			return 1
		}
		return 0
	}

	if *once {
		claimed, err := worker.RunOnce(ctx)
		if err != nil {
			_ = stop()
			fmt.Fprintf(os.Stderr, "Worker run failed: %v\n", err)
			return 1
		}
		fmt.Printf("worker claimed=%d\n", claimed)
		return stop()
	}

	if err := worker.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start translation worker: %v\n", err)
		return 1
	}
	<-ctx.Done()
	return stop()
}
