package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/daemon"
)

func NewDownCommand() *cobra.Command {
	var all bool

	downCmd := &cobra.Command{
		Use:   "down [name]",
		Short: "Stop a tunnel",
		Long:  `Stop a running tunnel by name, or every tunnel with --all.`,
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			command := ""
			switch {
			case all:
				command = "DOWN_ALL"
			case len(args) == 1:
				command = "DOWN " + args[0]
			default:
				cmd.Help()
				os.Exit(1)
			}

			response, err := daemon.SendCommand(command)
			if err != nil {
				slog.Info("Daemon is not running.")
				return
			}
			response.LogMessages()
			if response.HasError() {
				os.Exit(1)
			}
		},
	}
	downCmd.Flags().BoolVar(&all, "all", false, "stop every running tunnel")

	return downCmd
}
