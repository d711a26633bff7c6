package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/daemon"
)

func NewStatusCommand() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"st"},
		Short:   "Show running tunnels",
		Long:    `Show running tunnels`,
		Run: func(cmd *cobra.Command, args []string) {
			response, err := daemon.SendCommand("STATUS")
			if err != nil {
				slog.Info("Daemon is not running.")
				return
			}

			statuses, err := decodeStatuses(response.Data)
			if err != nil || len(statuses) == 0 {
				response.LogMessages()
				return
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tID\tKIND\tPID\tGUARDED")
			for _, s := range statuses {
				name := s.Name
				if name == "" {
					name = "-"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%v\n", name, s.TunnelID, s.Kind, s.Pid, s.Guarded)
			}
			w.Flush()
		},
	}

	return statusCmd
}

// decodeStatuses converts the generic response payload back into the typed
// status list.
func decodeStatuses(data interface{}) ([]daemon.TunnelStatus, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var statuses []daemon.TunnelStatus
	if err := json.Unmarshal(raw, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}
