// main.go - Admin control tool for salesboard
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/karloscodes/cartridge/cache"

	"salesboard/internal"
	"salesboard/internal/metrics"
	"salesboard/internal/seeder"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	defaultSeedOrders      = 5000
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&SeedCommand{},
	&MetricsCommand{},
	&CachePurgeCommand{},
	&CacheStatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	if _, ok := cmd.(*HelpCommand); ok {
		_ = cmd.Execute(ctx, nil, args)
		return
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	err = cmd.Execute(ctx, app, args)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := app.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Printf("Warning: Cleanup error: %v", shutdownErr)
	}

	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}
	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with demo products and orders
type SeedCommand struct{}

func (c *SeedCommand) Name() string { return "seed" }
func (c *SeedCommand) Description() string {
	return "Seeds the database with demo data: seed [count] [-days N] [-seed N]"
}

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	count := defaultSeedOrders
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			count = n
			args = args[1:]
		}
	}

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	days := fs.Int("days", seeder.DefaultDays, "how many days back orders reach")
	seed := fs.Uint64("seed", 0, "random seed for reproducible data (0 picks one)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	se := seeder.NewSeeder(app.DBManager, app.Logger, count)
	se.Days = *days
	if *seed != 0 {
		se.WithSeed(*seed, time.Now())
	}
	return se.Run(ctx)
}

// MetricsCommand prints a metrics summary as JSON
type MetricsCommand struct{}

func (c *MetricsCommand) Name() string { return "metrics" }
func (c *MetricsCommand) Description() string {
	return "Prints the metrics summary: metrics [period] [auto|memory|pushdown] [-channel X] [-status Y]"
}

func (c *MetricsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	req := metrics.Request{Period: "7"}
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		req.Period = args[0]
		args = args[1:]
	}
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		req.Strategy = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	fs.StringVar(&req.Channel, "channel", "", "channel filter")
	fs.StringVar(&req.Status, "status", "", "status filter: all, open_paid, open, processed")
	fs.StringVar(&req.Start, "start", "", "custom range start (YYYY-MM-DD)")
	fs.StringVar(&req.End, "end", "", "custom range end (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	start := time.Now()
	summary, err := app.Service.Compute(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("Computed %s summary with %s strategy in %s", summary.Period, summary.Strategy, time.Since(start))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// CachePurgeCommand drops every cached summary and generic cache row
type CachePurgeCommand struct{}

func (c *CachePurgeCommand) Name() string        { return "cache-purge" }
func (c *CachePurgeCommand) Description() string { return "Purges the metrics and generic caches" }

func (c *CachePurgeCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	summaries, err := app.Service.InvalidateCache(ctx)
	if err != nil {
		return fmt.Errorf("failed to invalidate metrics cache: %w", err)
	}

	rows, err := cache.PurgeAllCaches(app.DBManager.GetConnection())
	if err != nil {
		return fmt.Errorf("failed to purge generic caches: %w", err)
	}

	fmt.Printf("Purged %d cached summaries and %d generic cache rows\n", summaries, rows)
	return nil
}

// CacheStatusCommand shows whether the metrics cache is warm
type CacheStatusCommand struct{}

func (c *CacheStatusCommand) Name() string        { return "cache-status" }
func (c *CacheStatusCommand) Description() string { return "Shows the metrics cache status" }

func (c *CacheStatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	status := app.Service.CacheStatus(ctx)
	fmt.Println("Metrics cache:")
	fmt.Printf("- Namespace: %s\n", status.Namespace)
	fmt.Printf("- Warm: %t\n", status.Warm)
	fmt.Printf("- Entries: %d\n", status.Entries)
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// Helper functions

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: sbctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
