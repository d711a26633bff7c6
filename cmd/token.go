package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tunnelguard/tunnelguard/internal/keyring"
)

func NewTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage authentication tokens",
		Long:  `Store the user and node tokens in the system keyring. Stored tokens are filled into generated tunnel configs and never written to the config file.`,
	}

	tokenCmd.AddCommand(
		newTokenSetCommand(),
		newTokenClearCommand(),
	)

	return tokenCmd
}

func tokenKey(kind string) (string, error) {
	switch kind {
	case "user":
		return keyring.UserTokenKey, nil
	case "node":
		return keyring.NodeTokenKey, nil
	default:
		return "", fmt.Errorf("unknown token kind %q (want user or node)", kind)
	}
}

func newTokenSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <user|node>",
		Short: "Store a token in the keyring",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			key, err := tokenKey(args[0])
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}

			token, err := keyring.PromptToken(args[0] + " token")
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			if token == "" {
				slog.Error("Empty token, nothing stored")
				os.Exit(1)
			}

			if err := keyring.SetToken(key, token); err != nil {
				slog.Error(fmt.Sprintf("Failed to store token: %v", err))
				os.Exit(1)
			}
			fmt.Printf("Stored %s token.\n", args[0])
		},
	}
}

func newTokenClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <user|node>",
		Short: "Remove a token from the keyring",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			key, err := tokenKey(args[0])
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}

			if err := keyring.DeleteToken(key); err != nil {
				slog.Error(fmt.Sprintf("Failed to remove token: %v", err))
				os.Exit(1)
			}
			fmt.Printf("Removed %s token.\n", args[0])
		},
	}
}
