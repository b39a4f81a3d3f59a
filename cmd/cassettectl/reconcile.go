package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/bootstrap"
	"github.com/spec-kit/cassette-service/internal/config"
	"github.com/spec-kit/cassette-service/internal/observability"
	"github.com/spec-kit/cassette-service/internal/service"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sync ticket statuses with repair progress",
}

var reconcileTicketCmd = &cobra.Command{
	Use:   "ticket [ticket-id]",
	Short: "Reconcile one ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runReconcileTicket,
}

var reconcilePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Reconcile up to --limit tickets in RECEIVED, IN_PROGRESS or RESOLVED",
	RunE:  runReconcilePending,
}

var pendingLimit int

func init() {
	reconcilePendingCmd.Flags().IntVar(&pendingLimit, "limit", service.DefaultBatchLimit, "maximum tickets to scan")

	reconcileCmd.AddCommand(reconcileTicketCmd)
	reconcileCmd.AddCommand(reconcilePendingCmd)
}

func withContainer(ctx context.Context, fn func(c *bootstrap.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Postgres.DSN == "" {
		logger.Warn("POSTGRES_DSN is empty; reconciling an empty in-memory store")
	}
	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", zap.Error(err))
		return err
	}
	defer container.Close()
	return fn(container)
}

func runReconcileTicket(cmd *cobra.Command, args []string) error {
	return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
		result, err := c.Reconciler.ReconcileTicket(cmd.Context(), args[0], nil)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(result)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "TICKET\t%s\n", result.TicketID)
		fmt.Fprintf(w, "OUTCOME\t%s\n", result.Outcome)
		if result.Updated {
			fmt.Fprintf(w, "STATUS\t%s -> %s\n", result.OldStatus, result.NewStatus)
		}
		fmt.Fprintf(w, "REPAIRS\t%d/%d completed\n", result.Completed, result.Total)
		fmt.Fprintf(w, "REASON\t%s\n", result.Reason)
		return w.Flush()
	})
}

func runReconcilePending(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
		batch, err := c.Reconciler.ReconcilePending(cmd.Context(), pendingLimit)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(batch)
		}
		fmt.Printf("scanned %d, synced %d, errors %d\n", batch.Scanned, batch.Synced, batch.Errors)
		return nil
	})
}
