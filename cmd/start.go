package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/daemon"
)

func NewStartCommand() *cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the tunnelguard daemon",
		Long:  `Start the tunnelguard daemon`,
		Run: func(cmd *cobra.Command, args []string) {
			daemon.EnsureDaemonIsRunning()
		},
	}

	return startCmd
}
