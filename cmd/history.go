package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/core"
	"github.com/tunnelguard/tunnelguard/internal/db"
)

func NewHistoryCommand() *cobra.Command {
	var limit int
	var daemonEvents bool

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded tunnel events",
		Long:  `Show tunnel lifecycle events recorded by the daemon: starts, stops, detected crashes and automatic restarts.`,
		Run: func(cmd *cobra.Command, args []string) {
			database, err := db.Open(core.GetDatabasePath())
			if err != nil {
				slog.Error(fmt.Sprintf("Failed to open event database: %v", err))
				os.Exit(1)
			}
			defer database.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			defer w.Flush()

			if daemonEvents {
				events, err := database.GetRecentDaemonEvents(limit)
				if err != nil {
					slog.Error(fmt.Sprintf("Failed to read events: %v", err))
					os.Exit(1)
				}
				fmt.Fprintln(w, "TIME\tEVENT\tDETAILS")
				for _, e := range events {
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.EventType, e.Details)
				}
				return
			}

			events, err := database.GetRecentTunnelEvents(limit)
			if err != nil {
				slog.Error(fmt.Sprintf("Failed to read events: %v", err))
				os.Exit(1)
			}
			fmt.Fprintln(w, "TIME\tTUNNEL\tEVENT\tDETAILS")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.TunnelID, e.EventType, e.Details)
			}
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	historyCmd.Flags().BoolVar(&daemonEvents, "daemon", false, "show daemon lifecycle events instead")

	return historyCmd
}
