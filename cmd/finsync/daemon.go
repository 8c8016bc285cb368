package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/syncer"
)

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Keep syncing in the background",
		Long: `Run until interrupted, probing the remote store for connectivity.

Every time the remote becomes reachable the queue is drained and, once it is
empty, the local store is reconciled. Send SIGUSR1 to force a catch-up, for
example after editing data with another finsync command.`,
		RunE: runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, appOptions{background: true})
	if err != nil {
		return err
	}
	defer a.close()

	if a.client == nil {
		return common.NewUserError("No remote store configured",
			fmt.Errorf("%w: set remote.url and remote.api_key", common.ErrMissingConfig))
	}
	if a.cfg.Remote.UserID == "" {
		return common.NewUserError("No remote user configured",
			fmt.Errorf("%w: set remote.user_id", common.ErrMissingConfig))
	}

	runner := syncer.NewRunner(a.processor, a.reconciler, a.monitor, syncer.RunnerOptions{
		Pinger:            a.client,
		ProbeInterval:     a.cfg.Sync.ProbeInterval,
		ProbeTimeout:      a.cfg.Sync.ItemTimeout,
		ReconcileInterval: a.cfg.Sync.ReconcileInterval,
	})

	focus := make(chan os.Signal, 1)
	signal.Notify(focus, syscall.SIGUSR1)
	defer signal.Stop(focus)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-focus:
				runner.Focus()
			}
		}
	}()

	slog.Info("Sync daemon started",
		"remote", a.cfg.Remote.URL,
		"probe_interval", a.cfg.Sync.ProbeInterval,
		"reconcile_interval", a.cfg.Sync.ReconcileInterval,
		"pid", os.Getpid())

	if err := runner.Run(ctx); err != nil {
		return err
	}
	a.processor.Wait()

	slog.Info("Sync daemon stopped")
	return nil
}
