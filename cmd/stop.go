package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/daemon"
)

func NewStopCommand() *cobra.Command {
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the tunnelguard daemon and all tunnels",
		Long:  `Stop the tunnelguard daemon and all tunnels`,
		Run: func(cmd *cobra.Command, args []string) {
			response, err := daemon.SendCommand("STOP")
			if err != nil {
				slog.Info("Daemon is not running.")
				return
			}
			response.LogMessages()
		},
	}

	return stopCmd
}
