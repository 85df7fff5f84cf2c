package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/catalog/internal/cli"
	"horse.fit/catalog/internal/db"
)

func runTranslate(args []string) int {
	if len(args) == 0 {
		printTranslateUsage()
		return 2
	}

	kind, ok := parseEntityKind(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown translate target: %s\n\n", args[0])
		printTranslateUsage()
		return 2
	}

	fs := flag.NewFlagSet("translate "+string(kind), flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	provider := fs.String("provider", "", "Translation provider name (for example: local, google)")
	force := fs.Bool("force", false, "Retranslate slots that already have a value")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "translate requires one id argument")
		printTranslateUsage()
		return 2
	}

	id, err := strconv.ParseInt(strings.TrimSpace(fs.Arg(0)), 10, 64)
	if err != nil || id < 1 {
		fmt.Fprintln(os.Stderr, "translate id must be a positive integer")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := loadEnvironment(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, cfg, logger, runtimeOptions{Provider: *provider})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ref := db.EntityRef{Kind: kind, ID: id}
	result, err := rt.service.TranslateEntity(ctx, ref, *force)
	if err != nil {
		logger.Error().Err(err).Str("entity", ref.String()).Msg("translate failed")
		fmt.Fprintf(os.Stderr, "Translate failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{
			"entity":   ref.String(),
			"provider": rt.gateway.Name(),
			"force":    *force,
			"stats":    result.Stats,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf(
		"translate entity=%s provider=%s force=%t total=%d translated=%d cached=%d skipped=%d\n",
		ref.String(),
		rt.gateway.Name(),
		*force,
		result.Stats.Total,
		result.Stats.Translated,
		result.Stats.Cached,
		result.Stats.Skipped,
	)
	return 0
}

func parseEntityKind(raw string) (db.EntityKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "product", "products":
		return db.EntityProduct, true
	case "category", "categories":
		return db.EntityCategory, true
	default:
		return "", false
	}
}

func printTranslateUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  catalog translate product <id> [--force] [--provider name]")
	fmt.Fprintln(os.Stderr, "  catalog translate category <id> [--force] [--provider name]")
}
