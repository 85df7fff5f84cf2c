package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/catalog/internal/cli"
	"horse.fit/catalog/internal/httpapi"
	"horse.fit/catalog/internal/language"
	"horse.fit/catalog/internal/logging"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8080, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	migrate := fs.Bool("migrate", false, "Apply database migrations before serving")
	noWorker := fs.Bool("no-worker", false, "Do not run the translation worker in this process")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, err := loadEnvironment(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	rt, err := openRuntime(dbCtx, cfg, logger, runtimeOptions{Migrate: *migrate})
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to start")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if !*noWorker {
		worker, err := rt.newWorker()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create translation worker: %v\n", err)
			return 1
		}
		if err := worker.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start translation worker: %v\n", err)
			return 1
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), *shutdownTimeout)
			defer stopCancel()
			if err := worker.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("translation worker shutdown failed")
			}
		}()
	}

	srv := httpapi.NewServer(
		rt.service,
		language.NewNegotiator(cfg.SupportedLanguages, cfg.DefaultLanguage),
		rt.pool,
		logging.Component(logger, "http"),
		httpapi.Options{
			Host:            *host,
			Port:            *port,
			ReadTimeout:     *readTimeout,
			WriteTimeout:    *writeTimeout,
			ShutdownTimeout: *shutdownTimeout,
			AllowedOrigins:  splitList(cfg.CORSAllowedOrigins),
		},
	)

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
