package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/core"
)

func NewRootCommand() *cobra.Command {
	var configPath string
	var verbose int

	homeDir, _ := os.UserHomeDir()

	rootCmd := &cobra.Command{
		Use:   "tunnelguard",
		Short: "Tunnelguard - frp tunnel supervisor",
		Long:  `Tunnelguard - frp tunnel supervisor`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return core.InitializeConfig(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config-path", fmt.Sprintf("%s/%s", homeDir, core.BaseDirName),
		"config path",
	)
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "more output, repeat for even more")

	rootCmd.AddCommand(
		NewDaemonCommand(),
		NewStartCommand(),
		NewStopCommand(),
		NewStatusCommand(),
		NewUpCommand(),
		NewDownCommand(),
		NewGuardCommand(),
		NewCustomCommand(),
		NewTokenCommand(),
		NewLogsCommand(),
		NewHistoryCommand(),
		NewVersionCommand(),
	)

	return rootCmd
}
