package frpconfig

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNoTunnelSection is returned by Split when a document contains no section
// other than [common].
var ErrNoTunnelSection = errors.New("no tunnel section found in config")

// Summary holds the fields Parse extracts from a config document. When the
// document contains several tunnel sections, the scalar per-tunnel fields
// reflect whichever section set them last; TunnelNames lists all of them.
type Summary struct {
	ServerAddr    string
	ServerPort    int
	TunnelNames   []string
	TunnelType    string
	CustomDomains string
	Subdomain     string
	LocalIP       string
	LocalPort     int
	RemotePort    int
}

// Parse is a best-effort summarizer, not a validator: malformed lines are
// skipped and numeric fields that fail to parse are left absent.
func Parse(content string) Summary {
	var s Summary
	var section string

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if name, ok := sectionHeader(line); ok {
			section = name
			if section != "common" && section != "" {
				s.TunnelNames = append(s.TunnelNames, section)
			}
			continue
		}

		key, value, ok := keyValue(line)
		if !ok {
			continue
		}

		switch {
		case section == "common":
			switch key {
			case "server_addr":
				s.ServerAddr = value
			case "server_port":
				if n, err := strconv.Atoi(value); err == nil {
					s.ServerPort = n
				}
			}
		case section != "":
			switch key {
			case "type":
				s.TunnelType = value
			case "custom_domains":
				s.CustomDomains = value
			case "subdomain":
				s.Subdomain = value
			case "local_ip":
				s.LocalIP = value
			case "local_port":
				if n, err := strconv.Atoi(value); err == nil {
					s.LocalPort = n
				}
			case "remote_port":
				if n, err := strconv.Atoi(value); err == nil {
					s.RemotePort = n
				}
			}
		}
	}

	return s
}

// NamedBlock is one tunnel section reconstructed verbatim, header included.
type NamedBlock struct {
	Name string
	Text string
}

// Split groups a multi-tunnel document into the verbatim text of its common
// block and of each tunnel section, for reassembly into independent
// single-tunnel documents. Lines before the first section header are dropped,
// matching Parse's view of the document.
func Split(content string) (string, []NamedBlock, error) {
	var commonLines []string
	var tunnels []NamedBlock
	var lines []string // lines of the tunnel section being collected
	section := ""

	flush := func() {
		if section != "" && section != "common" && lines != nil {
			tunnels = append(tunnels, NamedBlock{
				Name: section,
				Text: strings.TrimSpace(strings.Join(lines, "\n")),
			})
		}
		lines = nil
	}

	for _, raw := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(raw)

		if name, ok := sectionHeader(trimmed); ok {
			flush()
			section = name
			if section == "common" {
				commonLines = append(commonLines, "["+name+"]")
			} else if section != "" {
				lines = []string{"[" + name + "]"}
			}
			continue
		}

		switch {
		case section == "common":
			commonLines = append(commonLines, raw)
		case section != "":
			lines = append(lines, raw)
		}
	}
	flush()

	if len(tunnels) == 0 {
		return "", nil, ErrNoTunnelSection
	}

	common := strings.TrimSpace(strings.Join(commonLines, "\n"))
	return common, tunnels, nil
}

func sectionHeader(line string) (string, bool) {
	if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
		return strings.TrimSpace(line[1 : len(line)-1]), true
	}
	return "", false
}

func keyValue(line string) (string, string, bool) {
	pos := strings.Index(line, "=")
	if pos < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:pos]), strings.TrimSpace(line[pos+1:]), true
}
