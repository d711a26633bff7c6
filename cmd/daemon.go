package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/daemon"
)

func NewDaemonCommand() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:     "daemon",
		Aliases: []string{"internal-daemon-start"},
		Hidden:  true,
		Run: func(cmd *cobra.Command, args []string) {
			d := daemon.New()
			d.Run()
		},
	}

	return daemonCmd
}
