package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/daemon"
)

func NewGuardCommand() *cobra.Command {
	guardCmd := &cobra.Command{
		Use:   "guard",
		Short: "Control the crash guard",
		Long:  `Control the crash guard that restarts tunnels when their process dies.`,
	}

	guardCmd.AddCommand(
		&cobra.Command{
			Use:   "on",
			Short: "Enable the guard",
			Run: func(cmd *cobra.Command, args []string) {
				daemon.EnsureDaemonIsRunning()
				sendGuardCommand("GUARD_ON")
			},
		},
		&cobra.Command{
			Use:   "off",
			Short: "Disable the guard",
			Run: func(cmd *cobra.Command, args []string) {
				sendGuardCommand("GUARD_OFF")
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show guard state and supervised tunnels",
			Run: func(cmd *cobra.Command, args []string) {
				response, err := daemon.SendCommand("GUARD_STATUS")
				if err != nil {
					slog.Info("Daemon is not running.")
					return
				}

				raw, _ := json.Marshal(response.Data)
				var data struct {
					Enabled  bool    `json:"enabled"`
					Enrolled []int32 `json:"enrolled"`
				}
				if err := json.Unmarshal(raw, &data); err != nil {
					response.LogMessages()
					return
				}

				state := "disabled"
				if data.Enabled {
					state = "enabled"
				}
				fmt.Printf("Guard is %s, supervising %d tunnel(s)\n", state, len(data.Enrolled))
				for _, id := range data.Enrolled {
					fmt.Printf("  tunnel %d\n", id)
				}
			},
		},
	)

	return guardCmd
}

func sendGuardCommand(command string) {
	response, err := daemon.SendCommand(command)
	if err != nil {
		slog.Info("Daemon is not running.")
		return
	}
	response.LogMessages()
	if response.HasError() {
		os.Exit(1)
	}
}
