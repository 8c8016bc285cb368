package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/finsync/internal/cli"
	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local data, queue and connectivity status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, appOptions{probe: true})
			if err != nil {
				return err
			}
			defer a.close()

			var b strings.Builder
			fmt.Fprintf(&b, "Database: %s\n", a.cfg.Database.Path)

			remoteLine := cli.SubtleStyle.Render("not configured")
			if a.client != nil {
				remoteLine = a.cfg.Remote.URL + " " + cli.FormatConnectivity(a.monitor.Online())
			}
			fmt.Fprintf(&b, "Remote:   %s\n", remoteLine)

			pending, err := a.store.QueueLen(ctx)
			if err != nil {
				return err
			}
			dead, err := a.store.DeadLetters(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(&b, "Queue:    %s pending, %s\n", cli.Plural(pending, "change"), cli.Plural(len(dead), "dead letter"))

			if a.snapshot != nil {
				snap, err := a.snapshot.Load(ctx)
				switch {
				case errors.Is(err, common.ErrNotFound):
					fmt.Fprintf(&b, "Snapshot: %s\n", cli.SubtleStyle.Render("none yet"))
				case err != nil:
					fmt.Fprintf(&b, "Snapshot: %s\n", cli.ErrorStyle.Render(err.Error()))
				default:
					fmt.Fprintf(&b, "Snapshot: saved %s\n", snap.SavedAt.Local().Format("2006-01-02 15:04"))
				}
			}

			rows := make([][]string, 0, len(model.TrackedTables))
			for _, table := range model.TrackedTables {
				n, err := a.store.Count(ctx, table)
				if err != nil {
					return err
				}
				rows = append(rows, []string{string(table), fmt.Sprintf("%d", n)})
			}

			fmt.Println(cli.RenderBox("finsync status", strings.TrimRight(b.String(), "\n")))
			fmt.Print(cli.RenderTable([]string{"TABLE", "ROWS"}, rows))
			return nil
		},
	}
}
