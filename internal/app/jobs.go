package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/catalog/internal/cli"
	"horse.fit/catalog/internal/db"
)

var jobStatusOrder = []string{db.JobStatusPending, db.JobStatusRunning, db.JobStatusDone, db.JobStatusDead}

func runJobs(args []string) int {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "jobs does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, _, err := loadEnvironment(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	counts, err := pool.Store().JobCounts(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query translation jobs: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(counts); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeTable(os.Stdout, []string{"status", "jobs"}, jobCountRows(counts)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render jobs table: %v\n", err)
		return 1
	}
	return 0
}

// jobCountRows lists the known statuses first, then anything else, then the total.
func jobCountRows(counts map[string]int64) [][]string {
	rows := make([][]string, 0, len(counts)+1)
	var total int64
	seen := make(map[string]struct{}, len(jobStatusOrder))
	for _, status := range jobStatusOrder {
		seen[status] = struct{}{}
		rows = append(rows, []string{status, fmt.Sprintf("%d", counts[status])})
		total += counts[status]
	}
	for status, count := range counts {
		if _, ok := seen[status]; ok {
			continue
		}
		rows = append(rows, []string{status, fmt.Sprintf("%d", count)})
		total += count
	}
	return append(rows, []string{"TOTAL", fmt.Sprintf("%d", total)})
}
