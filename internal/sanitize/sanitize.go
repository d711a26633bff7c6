// Package sanitize scrubs child process output before it reaches log sinks:
// terminal escape sequences are stripped and configured secrets are masked.
//
// Redaction is best-effort defense in depth, not a guarantee: a secret that
// appears as a non-prefix-aligned substring can still leak.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	// Placeholder replaces masked secret material in log lines.
	Placeholder = "***"

	// MinPrefixLen is the shortest secret prefix the scan will mask.
	MinPrefixLen = 8

	// MinSecretLenForPrefixScan is the minimum secret length before the
	// prefix scan kicks in; shorter secrets are only matched whole.
	MinSecretLenForPrefixScan = 10

	// minHalfLen is the minimum length of a delimiter-split secret half
	// that gets masked on its own.
	minHalfLen = 6
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// StripANSI removes ANSI escape sequences (colors, cursor movement) from a
// line of terminal output.
func StripANSI(line string) string {
	return ansiRe.ReplaceAllString(line, "")
}

// Redact masks every occurrence of the given secrets in line. Empty secrets
// are ignored.
func Redact(line string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		line = redactSecret(line, secret)
	}
	return line
}

func redactSecret(line, secret string) string {
	// Whole-token occurrences, including common punctuation-joined variants,
	// are removed outright.
	line = strings.ReplaceAll(line, secret+".", "")
	line = strings.ReplaceAll(line, secret+"-", "")
	line = strings.ReplaceAll(line, secret, "")

	// Dotted secrets (e.g. "user.token") leak through their halves.
	if dot := strings.Index(secret, "."); dot >= 0 {
		first, second := secret[:dot], secret[dot+1:]
		if len(first) >= minHalfLen {
			line = strings.ReplaceAll(line, first, Placeholder)
		}
		if len(second) >= minHalfLen {
			line = strings.ReplaceAll(line, second, Placeholder)
		}
	}

	// Mask truncated appearances: every prefix of the secret from full
	// length down to MinPrefixLen, longest first so shorter prefixes don't
	// chew holes into longer matches.
	if len(secret) >= MinSecretLenForPrefixScan {
		for n := len(secret); n >= MinPrefixLen; n-- {
			prefix := secret[:n]
			if strings.Contains(line, prefix) {
				line = strings.ReplaceAll(line, prefix, Placeholder)
			}
		}
	}

	return line
}
