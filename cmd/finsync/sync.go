package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/finsync/internal/cli"
	"github.com/Veraticus/finsync/internal/common"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued changes against the remote store",
		Long: `Drain the mutation queue once. Items that fail stay queued and are retried
on the next run; one failing item never blocks the rest.

With --reconcile, a reconciliation pass follows when the queue ends up empty.`,
		RunE: runSync,
	}

	cmd.Flags().Bool("reconcile", false, "Reconcile with the remote store after an empty queue")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	reconcile, _ := cmd.Flags().GetBool("reconcile")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	progress := cli.NewSyncProgress(os.Stderr, !noProgress)
	a, err := openApp(ctx, appOptions{probe: true, progress: progress.Update})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireRemote(); err != nil {
		return err
	}

	result, err := a.processor.SyncNow(ctx)
	progress.Finish()
	if err != nil {
		return common.NewUserError("Sync failed", err)
	}
	fmt.Println(cli.FormatPassResult(result))

	if !reconcile {
		return nil
	}
	if result.Remaining > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Skipping reconciliation, %s still queued", cli.Plural(result.Remaining, "change"))))
		return nil
	}
	return reconcileOnce(cmd, a)
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Make the local store match the remote store",
		Long: `Fetch every table from the remote store, delete local rows the remote no
longer has and overwrite local rows with the remote version.

Reconciliation refuses to run while changes are queued, so unsynced local
edits are never overwritten. Run "finsync sync" first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), appOptions{probe: true})
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.requireRemote(); err != nil {
				return err
			}
			return reconcileOnce(cmd, a)
		},
	}
}

func reconcileOnce(cmd *cobra.Command, a *app) error {
	result, err := a.reconciler.Reconcile(cmd.Context())
	switch {
	case errors.Is(err, common.ErrQueueNotEmpty):
		return common.NewUserError("Queued or dead-lettered changes must sync before reconciling (see `finsync queue dead`)", err)
	case err != nil:
		return common.NewUserError("Reconciliation failed, local data left untouched", err)
	}

	fmt.Println(cli.FormatTitle(cli.SyncIcon + " Reconciled"))
	fmt.Println(cli.FormatReconcileResult(result))
	return nil
}

func balancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Recalculate account balances from paid transactions",
		Long: `Recompute every account balance from its paid transactions and fix the
accounts whose cached balance drifted by more than one cent. Corrections are
queued like any other change.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.ledger.RecalculateBalances(ctx)
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatBalanceReport(report))
			return nil
		},
	}
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the mutation queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			items, err := a.store.QueueItems(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(cli.FormatQueue(items))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "dead",
		Short: "List changes the remote store rejected permanently",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			items, err := a.store.DeadLetters(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(cli.FormatDeadLetters(items))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "retry-dead",
		Short: "Move dead-lettered changes back into the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.store.RequeueDeadLetters(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Requeued %s", cli.Plural(n, "change"))))
			return nil
		},
	})

	return cmd
}

// syncAfterWrite drains the queue right away when the remote is reachable.
// Failures only leave the changes queued.
func syncAfterWrite(cmd *cobra.Command, a *app) {
	if a.client == nil || !a.monitor.Online() {
		fmt.Println(cli.SubtleStyle.Render("Saved locally, will sync when online"))
		return
	}
	result, err := a.processor.SyncNow(cmd.Context())
	if err != nil && !errors.Is(err, common.ErrPassInProgress) {
		fmt.Println(cli.FormatWarning("Saved locally, sync failed: " + err.Error()))
		return
	}
	if result.Remaining > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Saved locally, %s still queued", cli.Plural(result.Remaining, "change"))))
		return
	}
	fmt.Println(cli.FormatSuccess("Synced"))
}
