package keyring

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// PromptToken prompts the user to enter a token securely (no echo)
func PromptToken(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "Enter %s: ", label)

	// Try to open /dev/tty directly for terminal input
	// Fall back to stdin if tty is not available
	fd := int(os.Stdin.Fd())
	tty, err := os.Open("/dev/tty")
	if err == nil {
		defer tty.Close()
		fd = int(tty.Fd())
	}

	tokenBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // Print newline after token input

	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	return string(tokenBytes), nil
}
