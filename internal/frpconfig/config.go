// Package frpconfig translates between structured tunnel descriptions and the
// flat INI-style configuration format the frpc child process consumes.
package frpconfig

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// Tunnel types accepted by Generate. tcp/udp tunnels require a remote port,
// http/https tunnels require custom domains.
const (
	TypeTCP   = "tcp"
	TypeUDP   = "udp"
	TypeHTTP  = "http"
	TypeHTTPS = "https"
)

// CustomIDPrefix is prepended to a custom tunnel's name before hashing so that
// custom ids occupy a different part of the hash space than plain names would.
const CustomIDPrefix = "custom_"

// TunnelConfig describes a single official tunnel. Optional numeric fields use
// zero as absent; optional strings use empty.
type TunnelConfig struct {
	TunnelID      int32  `json:"tunnel_id"`
	TunnelName    string `json:"tunnel_name"`
	ServerAddr    string `json:"server_addr"`
	ServerPort    int    `json:"server_port"`
	LocalIP       string `json:"local_ip"`
	LocalPort     int    `json:"local_port"`
	TunnelType    string `json:"tunnel_type"`
	RemotePort    int    `json:"remote_port,omitempty"`
	CustomDomains string `json:"custom_domains,omitempty"`
	HTTPProxy     string `json:"http_proxy,omitempty"`
	ForceTLS      bool   `json:"force_tls"`
	KCP           bool   `json:"kcp_optimization"`
	UserToken     string `json:"user_token"`
	NodeToken     string `json:"node_token"`
}

// ValidationError describes a malformed or incomplete tunnel request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid tunnel config: %s %s", e.Field, e.Reason)
}

// Generate renders a single-tunnel frpc config: a [common] block with server
// and credential settings followed by one tunnel block.
func Generate(cfg TunnelConfig) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "[common]\n")
	fmt.Fprintf(&b, "server_addr = %s\n", cfg.ServerAddr)
	fmt.Fprintf(&b, "server_port = %d\n", cfg.ServerPort)
	if cfg.HTTPProxy != "" {
		fmt.Fprintf(&b, "http_proxy = %s\n", cfg.HTTPProxy)
	}
	fmt.Fprintf(&b, "tls_enable = %t\n", cfg.ForceTLS)
	fmt.Fprintf(&b, "tcp_mux = true\n")
	fmt.Fprintf(&b, "pool_count = 5\n")
	if cfg.KCP && (cfg.TunnelType == TypeTCP || cfg.TunnelType == TypeUDP) {
		fmt.Fprintf(&b, "protocol = kcp\n")
	}
	fmt.Fprintf(&b, "user = %s\n", cfg.UserToken)
	fmt.Fprintf(&b, "token = %s\n", cfg.NodeToken)
	fmt.Fprintf(&b, "\n")

	fmt.Fprintf(&b, "[%s]\n", cfg.TunnelName)
	fmt.Fprintf(&b, "type = %s\n", cfg.TunnelType)
	fmt.Fprintf(&b, "local_ip = %s\n", cfg.LocalIP)
	fmt.Fprintf(&b, "local_port = %d\n", cfg.LocalPort)

	switch cfg.TunnelType {
	case TypeTCP, TypeUDP:
		if cfg.RemotePort == 0 {
			return "", &ValidationError{Field: "remote_port", Reason: "is required for tcp/udp tunnels"}
		}
		fmt.Fprintf(&b, "remote_port = %d\n", cfg.RemotePort)
	case TypeHTTP, TypeHTTPS:
		if cfg.CustomDomains == "" {
			return "", &ValidationError{Field: "custom_domains", Reason: "is required for http/https tunnels"}
		}
		fmt.Fprintf(&b, "custom_domains = %s\n", cfg.CustomDomains)
	default:
		return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not a supported tunnel type", cfg.TunnelType)}
	}

	return b.String(), nil
}

// ValidTunnelName reports whether name contains only letters, digits,
// underscores and hyphens.
func ValidTunnelName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// HashCustomID derives the registry identifier for a custom tunnel from its
// name: FNV-1a over a fixed prefix plus the name, folded into a non-negative
// int32. Deterministic and non-cryptographic; collisions between two enrolled
// tunnels are detected at save time, not here.
func HashCustomID(name string) int32 {
	h := fnv.New32a()
	h.Write([]byte(CustomIDPrefix + name))
	id := int32(h.Sum32())
	if id < 0 {
		// Flip to the non-negative range. MinInt32 has no positive
		// counterpart, so map it to 0 explicitly.
		if id == -1<<31 {
			return 0
		}
		id = -id
	}
	return id
}
