package sanitize

import (
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"\x1b[31merror\x1b[0m occurred", "error occurred"},
		{"\x1b[1;32mOK\x1b[0m", "OK"},
		{"\x1b[2Jcleared", "cleared"},
	}
	for _, tt := range tests {
		if got := StripANSI(tt.in); got != tt.want {
			t.Errorf("StripANSI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactWholeToken(t *testing.T) {
	line := "login with token abcdefgh1234 done"
	got := Redact(line, "abcdefgh1234")
	if strings.Contains(got, "abcdefgh1234") {
		t.Errorf("token survived redaction: %q", got)
	}
}

func TestRedactPunctuationVariants(t *testing.T) {
	got := Redact("user abcdefgh1234.suffix and abcdefgh1234-suffix", "abcdefgh1234")
	if strings.Contains(got, "abcdefgh1234") {
		t.Errorf("joined variant survived: %q", got)
	}
}

func TestRedactDottedHalves(t *testing.T) {
	secret := "firstpart.secondpart"
	got := Redact("saw firstpart and secondpart here", secret)
	if strings.Contains(got, "firstpart") || strings.Contains(got, "secondpart") {
		t.Errorf("secret halves survived: %q", got)
	}

	// Halves shorter than six characters stay as-is
	got = Redact("saw abc in logs", "abc.xy")
	if !strings.Contains(got, "abc") {
		t.Errorf("short half should not be masked: %q", got)
	}
}

func TestRedactNoEightCharSubstringSurvives(t *testing.T) {
	secret := "abcdefghij0123456789" // 20 chars
	line := "partial leak: " + secret[:14] + " and full: " + secret

	got := Redact(line, secret)

	for i := 0; i+MinPrefixLen <= len(secret); i++ {
		sub := secret[i : i+MinPrefixLen]
		if strings.Contains(got, sub) {
			t.Errorf("substring %q of secret survived redaction: %q", sub, got)
		}
	}
}

func TestRedactShortSecretNoPrefixScan(t *testing.T) {
	// 9 chars: below the prefix-scan threshold, only whole matches masked
	secret := "abcdefghi"
	got := Redact("truncated abcdefgh appears", secret)
	if !strings.Contains(got, "abcdefgh") {
		t.Errorf("prefix scan should not apply to short secrets: %q", got)
	}
}

func TestRedactEmptySecretIgnored(t *testing.T) {
	line := "nothing to see"
	if got := Redact(line, ""); got != line {
		t.Errorf("empty secret changed line: %q", got)
	}
}

func TestRedactMultipleSecrets(t *testing.T) {
	got := Redact("user usertoken12345 node nodetoken67890", "usertoken12345", "nodetoken67890")
	if strings.Contains(got, "usertoken12345") || strings.Contains(got, "nodetoken67890") {
		t.Errorf("one of multiple secrets survived: %q", got)
	}
}
