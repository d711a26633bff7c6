package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/daemon"
)

func NewUpCommand() *cobra.Command {
	upCmd := &cobra.Command{
		Use:   "up <name>",
		Short: "Start a tunnel",
		Long:  `Start a tunnel by name. Official tunnel definitions take precedence over custom tunnels.`,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			daemon.EnsureDaemonIsRunning()
			response, err := daemon.SendCommand("UP " + args[0])
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			response.LogMessages()
			if response.HasError() {
				os.Exit(1)
			}
		},
	}

	return upCmd
}
