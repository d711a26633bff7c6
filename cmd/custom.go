package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/core"
	"github.com/tunnelguard/tunnelguard/internal/daemon"
	"github.com/tunnelguard/tunnelguard/internal/tunnelstore"
)

func NewCustomCommand() *cobra.Command {
	customCmd := &cobra.Command{
		Use:   "custom",
		Short: "Manage custom tunnel configs",
		Long:  `Manage user-supplied tunnel configs. Each saved tunnel gets its own config file that you can edit directly.`,
	}

	customCmd.AddCommand(
		newCustomAddCommand(),
		newCustomListCommand(),
		newCustomShowCommand(),
		newCustomUpdateCommand(),
		newCustomDeleteCommand(),
		newCustomFixTLSCommand(),
	)

	return customCmd
}

func customStore() *tunnelstore.Store {
	return tunnelstore.New(core.GetConfigPath())
}

// readConfigInput reads config content from a file argument or stdin.
func readConfigInput(path string) (string, error) {
	if path == "-" || path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read config from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return string(data), nil
}

func newCustomAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add [file]",
		Short: "Save tunnels from a config document",
		Long:  `Save tunnels from a config document. A document with several tunnel sections is split into one custom tunnel per section. Reads stdin when no file is given.`,
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			content, err := readConfigInput(path)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}

			created, err := customStore().Save(content)
			if err != nil {
				slog.Error(fmt.Sprintf("Failed to save tunnels: %v", err))
				os.Exit(1)
			}
			for _, rec := range created {
				fmt.Printf("Saved custom tunnel '%s' (%s)\n", rec.ID, rec.ConfigFile)
			}
		},
	}
}

func newCustomListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List custom tunnels",
		Run: func(cmd *cobra.Command, args []string) {
			records, err := customStore().List()
			if err != nil {
				slog.Error(fmt.Sprintf("Failed to list tunnels: %v", err))
				os.Exit(1)
			}
			if len(records) == 0 {
				fmt.Println("No custom tunnels saved.")
				return
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tSERVER\tLOCAL\tREMOTE\tCREATED")
			for _, rec := range records {
				remote := rec.CustomDomains
				if remote == "" && rec.RemotePort != 0 {
					remote = fmt.Sprintf(":%d", rec.RemotePort)
				}
				fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s:%d\t%s\t%s\n",
					rec.ID, rec.TunnelType, rec.ServerAddr, rec.ServerPort,
					rec.LocalIP, rec.LocalPort, remote, rec.CreatedAt)
			}
			w.Flush()
		},
	}
}

func newCustomShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a custom tunnel's config file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			content, err := customStore().GetConfig(args[0])
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			fmt.Print(content)
		},
	}
}

func newCustomUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <name> [file]",
		Short: "Replace a custom tunnel's config",
		Long:  `Replace a custom tunnel's config file. Reads stdin when no file is given. Takes effect on the next start.`,
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			content, err := readConfigInput(path)
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}

			rec, err := customStore().UpdateConfig(args[0], content)
			if err != nil {
				slog.Error(fmt.Sprintf("Failed to update tunnel: %v", err))
				os.Exit(1)
			}
			fmt.Printf("Updated custom tunnel '%s'\n", rec.ID)
		},
	}
}

func newCustomDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a custom tunnel",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			name := args[0]

			// Stop the tunnel first if the daemon is up; ignore failures,
			// the tunnel may simply not be running
			if response, err := daemon.SendCommand("DOWN " + name); err == nil {
				response.LogMessages()
			}

			if err := customStore().Delete(name); err != nil {
				slog.Error(fmt.Sprintf("Failed to delete tunnel: %v", err))
				os.Exit(1)
			}
			fmt.Printf("Deleted custom tunnel '%s'\n", name)
		},
	}
}

func newCustomFixTLSCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fixtls <name>",
		Short: "Force tls_enable on in a custom tunnel's config",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := customStore().FixTLS(args[0]); err != nil {
				slog.Error(fmt.Sprintf("Failed to fix TLS setting: %v", err))
				os.Exit(1)
			}
			fmt.Printf("Enabled TLS for custom tunnel '%s'\n", args[0])
		},
	}
}
