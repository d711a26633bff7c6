package tunnelstore

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/tunnelguard/tunnelguard/internal/frpconfig"
)

// OfficialTunnel is one `tunnel` block from tunnels.hcl. Official tunnels
// carry an operator-assigned identifier and a full structured description;
// credentials are filled in from the keyring or config at launch time.
type OfficialTunnel struct {
	Name          string `hcl:"name,label"`
	ID            int32  `hcl:"id"`
	Type          string `hcl:"type"`
	ServerAddr    string `hcl:"server_addr"`
	ServerPort    int    `hcl:"server_port"`
	LocalIP       string `hcl:"local_ip,optional"`
	LocalPort     int    `hcl:"local_port"`
	RemotePort    int    `hcl:"remote_port,optional"`
	CustomDomains string `hcl:"custom_domains,optional"`
	HTTPProxy     string `hcl:"http_proxy,optional"`
	TLS           *bool  `hcl:"tls,optional"`
	KCP           bool   `hcl:"kcp,optional"`
	Autostart     bool   `hcl:"autostart,optional"`
}

type tunnelsFile struct {
	Tunnels []OfficialTunnel `hcl:"tunnel,block"`
}

// LoadOfficialTunnels reads the official tunnel definitions. A missing file
// is not an error; it just means no official tunnels are defined.
func LoadOfficialTunnels(path string) ([]OfficialTunnel, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	var file tunnelsFile
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return file.Tunnels, nil
}

// FindOfficialTunnel looks a definition up by name.
func FindOfficialTunnel(tunnels []OfficialTunnel, name string) (OfficialTunnel, bool) {
	for _, t := range tunnels {
		if t.Name == name {
			return t, true
		}
	}
	return OfficialTunnel{}, false
}

// TunnelConfig converts a definition into a launchable config, applying
// defaults and the supplied credentials.
func (t OfficialTunnel) TunnelConfig(userToken, nodeToken string) frpconfig.TunnelConfig {
	localIP := t.LocalIP
	if localIP == "" {
		localIP = "127.0.0.1"
	}
	tls := true
	if t.TLS != nil {
		tls = *t.TLS
	}
	return frpconfig.TunnelConfig{
		TunnelID:      t.ID,
		TunnelName:    t.Name,
		ServerAddr:    t.ServerAddr,
		ServerPort:    t.ServerPort,
		LocalIP:       localIP,
		LocalPort:     t.LocalPort,
		TunnelType:    t.Type,
		RemotePort:    t.RemotePort,
		CustomDomains: t.CustomDomains,
		HTTPProxy:     t.HTTPProxy,
		ForceTLS:      tls,
		KCP:           t.KCP,
		UserToken:     userToken,
		NodeToken:     nodeToken,
	}
}
