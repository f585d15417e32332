package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/spirits-ledger/events"
	"github.com/warp/spirits-ledger/inventory"
)

// ErrDrift is returned by "check --fail-on-drift" when any container's log
// does not sum to its snapshot.
var ErrDrift = errors.New("ledger drift detected")

// =============================================================================
// CHECK
// =============================================================================

func (c *cli) newCheckCommand() *cobra.Command {
	var failOnDrift bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare every container with the sum of its log entries",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.withLedger(func(ctx context.Context, _ []string) error {
		report, err := c.app.Service.CheckConsistency(ctx)
		if err != nil {
			return err
		}
		if c.jsonOutput {
			if err := c.printJSON(report); err != nil {
				return err
			}
		} else {
			tw := newTable(c.out, "CONTAINER", "ENTRIES", "SNAPSHOT_LBS", "LOGGED_LBS", "DRIFT_LBS", "DRIFT_PG", "MISMATCH")
			for _, d := range report.Discrepancies {
				row(tw, d.ContainerName, d.Entries,
					d.SnapshotNetWeightLbs.StringFixed(2), d.LoggedNetWeightLbs.StringFixed(2),
					d.NetWeightDrift.StringFixed(2), d.ProofGallonsDrift.StringFixed(3), d.NetMismatch)
			}
			_ = tw.Flush()
			fmt.Fprintf(c.out, "checked %d containers and %d entries: %d mismatches\n",
				report.Containers, report.Entries, report.Mismatches())
		}
		if failOnDrift && report.Mismatches() > 0 {
			return ErrDrift
		}
		return nil
	})

	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "Exit non-zero when any container drifts")
	return cmd
}

// =============================================================================
// LOG
// =============================================================================

func (c *cli) newLogCommand() *cobra.Command {
	var (
		container string
		types     []string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List transaction log entries, newest first",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.withLedger(func(ctx context.Context, _ []string) error {
		filter := inventory.EntryFilter{ContainerID: inventory.ContainerID(container), Limit: limit}
		for _, t := range types {
			et := inventory.EntryType(strings.ToUpper(strings.TrimSpace(t)))
			if !et.Valid() {
				return fmt.Errorf("unknown entry type %q", t)
			}
			filter.Types = append(filter.Types, et)
		}
		entries, err := c.app.Service.Entries(ctx, filter)
		if err != nil {
			return err
		}
		if c.jsonOutput {
			return c.printJSON(entries)
		}
		tw := newTable(c.out, "TIMESTAMP", "ID", "TYPE", "CONTAINER", "NET_LBS", "PG", "PROOF", "NOTES")
		for _, e := range entries {
			row(tw, e.Timestamp.UTC().Format("2006-01-02 15:04:05"), e.ID, e.Type, e.ContainerName,
				e.NetWeightLbsChange.StringFixed(2), e.ProofGallonsChange.StringFixed(3),
				e.Proof.String(), e.Notes)
		}
		return tw.Flush()
	})

	cmd.Flags().StringVar(&container, "container", "", "Only entries for this container id")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Only these entry types (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to show (0 = all)")
	return cmd
}

// =============================================================================
// CONTAINERS
// =============================================================================

func (c *cli) newContainersCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "containers",
		Short: "List containers and their contents",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.withLedger(func(ctx context.Context, _ []string) error {
		containers, err := c.app.Service.Containers(ctx, inventory.ContainerFilter{IncludeRetired: all})
		if err != nil {
			return err
		}
		if c.jsonOutput {
			return c.printJSON(containers)
		}
		tw := newTable(c.out, "ID", "NAME", "TYPE", "STATUS", "PRODUCT", "PROOF", "NET_LBS", "WG", "PG", "VERSION")
		for _, ct := range containers {
			status := string(ct.Status)
			if ct.Retired {
				status = "retired"
			}
			row(tw, ct.ID, ct.Name, c.app.Catalog.Label(ct.Type), status, ct.Fill.ProductType,
				ct.Fill.Proof.String(), ct.Fill.NetWeightLbs.StringFixed(2),
				ct.Fill.WineGallons.StringFixed(3), ct.Fill.ProofGallons.StringFixed(3), ct.Version)
		}
		return tw.Flush()
	})

	cmd.Flags().BoolVar(&all, "all", false, "Include retired containers")
	return cmd
}

// =============================================================================
// UNDO / REMOVE
// =============================================================================

func (c *cli) newEligibilityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eligibility <entry-id>",
		Short: "Show whether a log entry can be undone",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = c.withLedger(func(ctx context.Context, args []string) error {
		el, err := c.app.Service.Eligibility(ctx, inventory.EntryID(args[0]))
		if err != nil {
			return err
		}
		if c.jsonOutput {
			return c.printJSON(el)
		}
		if el.Undoable {
			fmt.Fprintf(c.out, "entry %s can be undone until %s (%s undo)\n",
				el.EntryID, el.ExpiresAt.UTC().Format("2006-01-02 15:04"), c.app.Service.UndoMode())
			return nil
		}
		fmt.Fprintf(c.out, "entry %s cannot be undone: %s\n", el.EntryID, el.Reason)
		return nil
	})
	return cmd
}

func (c *cli) newUndoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo <entry-id>",
		Short: "Reverse a log entry's effect on its container",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = c.withLedger(func(ctx context.Context, args []string) error {
		res, err := c.app.Service.Undo(ctx, inventory.EntryID(args[0]))
		if err != nil {
			return err
		}
		return c.printResult("undid", args[0], res)
	})
	return cmd
}

func (c *cli) newRemoveCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <entry-id>",
		Short: "Delete a log entry without changing any container",
		Long: "Delete a log entry without changing any container.\n" +
			"The container's snapshot will no longer match its log; \"check\" reports the drift.",
		Args: cobra.ExactArgs(1),
	}
	cmd.RunE = c.withLedger(func(ctx context.Context, args []string) error {
		if !yes {
			return fmt.Errorf("remove leaves the container out of step with its log; pass --yes to proceed")
		}
		res, err := c.app.Service.Remove(ctx, inventory.EntryID(args[0]))
		if err != nil {
			return err
		}
		return c.printResult("removed", args[0], res)
	})

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm removal")
	return cmd
}

func (c *cli) newSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the catalog's default products if none exist",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.withLedger(func(ctx context.Context, _ []string) error {
		n, err := c.app.Service.SeedProducts(ctx, c.app.Catalog.DefaultProducts())
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "created %d products\n", n)
		return nil
	})
	return cmd
}

// =============================================================================
// WATCH
// =============================================================================

func newWatchCommand(out io.Writer) *cobra.Command {
	var (
		url    string
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print ledger change events from NATS until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if url == "" {
				url = os.Getenv("NATS_URL")
			}
			if url == "" {
				return fmt.Errorf("--nats or NATS_URL is required")
			}
			bus, err := events.Connect(url)
			if err != nil {
				return fmt.Errorf("connect nats: %w", err)
			}
			defer bus.Close()

			subject := events.Subject(prefix, ">")
			fmt.Fprintf(out, "watching %s on %s\n", subject, url)
			return bus.Subscribe(ctx, subject, func(ev events.Event) {
				fmt.Fprintf(out, "%s %-18s %-6s %s\n", ev.At.Format("15:04:05.000"), ev.Collection, ev.Op, ev.ID)
			})
		},
	}

	cmd.Flags().StringVar(&url, "nats", "", "NATS URL (default $NATS_URL)")
	cmd.Flags().StringVar(&prefix, "prefix", events.DefaultPrefix, "Subject prefix")
	return cmd
}

// =============================================================================
// OUTPUT
// =============================================================================

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printResult(verb, id string, res inventory.Result) error {
	if c.jsonOutput {
		return c.printJSON(res)
	}
	fmt.Fprintf(c.out, "%s entry %s (%s)\n", verb, id, c.app.Service.UndoMode())
	for _, ct := range res.Containers {
		fmt.Fprintf(c.out, "  %s: %s, %s lbs, %s PG at %s proof\n",
			ct.Name, ct.Status, ct.Fill.NetWeightLbs.StringFixed(2),
			ct.Fill.ProofGallons.StringFixed(3), ct.Fill.Proof.String())
	}
	return nil
}

func newTable(out io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}
