package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/core"
)

func NewLogsCommand() *cobra.Command {
	var lines int
	var noHistory bool

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Stream tunnel output",
		Long:  `Stream the sanitized output of all running tunnels. Press Ctrl+C to exit.`,
		Run: func(cmd *cobra.Command, args []string) {
			conn, err := net.Dial("unix", core.GetSocketPath())
			if err != nil {
				slog.Info("Daemon is not running.")
				return
			}
			defer conn.Close()

			command := fmt.Sprintf("LOGS %d", lines)
			if noHistory {
				command += " no_history"
			}
			if _, err := conn.Write([]byte(command + "\n")); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}

			// Close the connection on Ctrl+C so the copy loop unblocks
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				conn.Close()
			}()

			io.Copy(os.Stdout, conn)
		},
	}
	logsCmd.Flags().IntVarP(&lines, "lines", "n", 20, "history lines to replay")
	logsCmd.Flags().BoolVar(&noHistory, "no-history", false, "skip history replay")

	return logsCmd
}
