package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/core"
)

func NewVersionCommand() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(core.FormatVersion(core.Version))
		},
	}

	return versionCmd
}
