// Command ledgerctl inspects and repairs a spirits ledger database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/spirits-ledger/internal/app"
	"github.com/warp/spirits-ledger/internal/config"
	"github.com/warp/spirits-ledger/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the opened ledger between the root command and subcommands.
type cli struct {
	out io.Writer
	cfg config.Config
	log zerolog.Logger
	app *app.App

	dbPath      string
	catalogPath string
	undoMode    string
	logLevel    string
	jsonOutput  bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tool for the spirits ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database path (default $DB_PATH)")
	cmd.PersistentFlags().StringVar(&c.catalogPath, "catalog", "", "Catalog YAML (default $CATALOG_PATH or embedded)")
	cmd.PersistentFlags().StringVar(&c.undoMode, "undo-mode", "", "hard or soft (default $UNDO_MODE)")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Print JSON instead of a table")

	cmd.AddCommand(
		c.newCheckCommand(),
		c.newLogCommand(),
		c.newContainersCommand(),
		c.newEligibilityCommand(),
		c.newUndoCommand(),
		c.newRemoveCommand(),
		c.newSeedCommand(),
		newWatchCommand(out),
	)
	return cmd
}

// open loads configuration, applies flag overrides and opens the ledger.
func (c *cli) open(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	if c.catalogPath != "" {
		cfg.CatalogPath = c.catalogPath
	}
	if c.undoMode != "" {
		cfg.UndoMode = c.undoMode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.NewWithWriter(os.Stderr, c.logLevel, "console")
	if err != nil {
		return err
	}
	a, err := app.Open(cfg, log)
	if err != nil {
		return err
	}
	c.cfg, c.log, c.app = cfg, log, a
	return nil
}

func (c *cli) close() {
	if c.app != nil {
		_ = c.app.Close()
		c.app = nil
	}
}

// withLedger wraps a RunE so the ledger is open for its duration.
func (c *cli) withLedger(run func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := c.open(ctx); err != nil {
			return err
		}
		defer c.close()
		return run(ctx, args)
	}
}
