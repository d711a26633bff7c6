package frpconfig

import (
	"errors"
	"strings"
	"testing"
)

func validTCPConfig() TunnelConfig {
	return TunnelConfig{
		TunnelID:   42,
		TunnelName: "web-ssh",
		ServerAddr: "frp.example.com",
		ServerPort: 7000,
		LocalIP:    "127.0.0.1",
		LocalPort:  22,
		TunnelType: TypeTCP,
		RemotePort: 10022,
		ForceTLS:   true,
		UserToken:  "usertoken123",
		NodeToken:  "nodetoken456",
	}
}

func TestGenerateParseRoundTripTCP(t *testing.T) {
	for _, typ := range []string{TypeTCP, TypeUDP} {
		cfg := validTCPConfig()
		cfg.TunnelType = typ

		text, err := Generate(cfg)
		if err != nil {
			t.Fatalf("Generate(%s) failed: %v", typ, err)
		}

		s := Parse(text)
		if s.TunnelType != typ {
			t.Errorf("type: expected %q, got %q", typ, s.TunnelType)
		}
		if s.LocalIP != cfg.LocalIP {
			t.Errorf("local_ip: expected %q, got %q", cfg.LocalIP, s.LocalIP)
		}
		if s.LocalPort != cfg.LocalPort {
			t.Errorf("local_port: expected %d, got %d", cfg.LocalPort, s.LocalPort)
		}
		if s.RemotePort != cfg.RemotePort {
			t.Errorf("remote_port: expected %d, got %d", cfg.RemotePort, s.RemotePort)
		}
		if s.ServerAddr != cfg.ServerAddr {
			t.Errorf("server_addr: expected %q, got %q", cfg.ServerAddr, s.ServerAddr)
		}
		if s.ServerPort != cfg.ServerPort {
			t.Errorf("server_port: expected %d, got %d", cfg.ServerPort, s.ServerPort)
		}
	}
}

func TestGenerateParseRoundTripHTTP(t *testing.T) {
	for _, typ := range []string{TypeHTTP, TypeHTTPS} {
		cfg := validTCPConfig()
		cfg.TunnelType = typ
		cfg.RemotePort = 0
		cfg.CustomDomains = "app.example.com,www.example.com"

		text, err := Generate(cfg)
		if err != nil {
			t.Fatalf("Generate(%s) failed: %v", typ, err)
		}

		s := Parse(text)
		if s.CustomDomains != cfg.CustomDomains {
			t.Errorf("custom_domains: expected %q, got %q", cfg.CustomDomains, s.CustomDomains)
		}
	}
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TunnelConfig)
	}{
		{"tcp without remote port", func(c *TunnelConfig) {
			c.TunnelType = TypeTCP
			c.RemotePort = 0
		}},
		{"http without custom domains", func(c *TunnelConfig) {
			c.TunnelType = TypeHTTP
			c.CustomDomains = ""
		}},
		{"unknown type", func(c *TunnelConfig) {
			c.TunnelType = "stcp"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTCPConfig()
			tt.mutate(&cfg)

			_, err := Generate(cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestGenerateKCPOnlyForTCPUDP(t *testing.T) {
	cfg := validTCPConfig()
	cfg.KCP = true

	text, err := Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "protocol = kcp") {
		t.Error("expected kcp protocol override for tcp tunnel")
	}

	cfg.TunnelType = TypeHTTP
	cfg.CustomDomains = "a.example.com"
	text, err = Generate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(text, "protocol = kcp") {
		t.Error("kcp protocol override must not apply to http tunnels")
	}
}

func TestParseSkipsMalformedLines(t *testing.T) {
	content := strings.Join([]string{
		"[common]",
		"server_addr = h.example.com",
		"server_port = notanumber",
		"this line has no equals sign",
		"# comment",
		"; also a comment",
		"[t1",
		"[web]",
		"type = http",
		"local_port = 8080",
	}, "\n")

	s := Parse(content)
	if s.ServerAddr != "h.example.com" {
		t.Errorf("server_addr: got %q", s.ServerAddr)
	}
	if s.ServerPort != 0 {
		t.Errorf("unparsable server_port should stay absent, got %d", s.ServerPort)
	}
	if len(s.TunnelNames) != 1 || s.TunnelNames[0] != "web" {
		t.Errorf("tunnel names: got %v", s.TunnelNames)
	}
	if s.LocalPort != 8080 {
		t.Errorf("local_port: got %d", s.LocalPort)
	}
}

func TestSplitTwoTunnels(t *testing.T) {
	content := strings.Join([]string{
		"[common]",
		"server_addr = h.example.com",
		"server_port = 7000",
		"",
		"[a]",
		"type = tcp",
		"remote_port = 10001",
		"",
		"[b]",
		"type = tcp",
		"remote_port = 10002",
	}, "\n")

	common, tunnels, err := Split(content)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if !strings.Contains(common, "[common]") || !strings.Contains(common, "server_addr") {
		t.Errorf("common block incomplete: %q", common)
	}
	if strings.Contains(common, "remote_port") {
		t.Errorf("tunnel lines leaked into common block: %q", common)
	}

	if len(tunnels) != 2 {
		t.Fatalf("expected 2 tunnel blocks, got %d", len(tunnels))
	}
	a, b := tunnels[0], tunnels[1]
	if a.Name != "a" || b.Name != "b" {
		t.Fatalf("names: got %q, %q", a.Name, b.Name)
	}
	if !strings.Contains(a.Text, "[a]") || !strings.Contains(a.Text, "10001") {
		t.Errorf("block a incomplete: %q", a.Text)
	}
	if strings.Contains(a.Text, "10002") || strings.Contains(b.Text, "10001") {
		t.Error("tunnel lines leaked between blocks")
	}
}

func TestSplitNoTunnelSection(t *testing.T) {
	_, _, err := Split("[common]\nserver_addr = h.example.com\n")
	if !errors.Is(err, ErrNoTunnelSection) {
		t.Errorf("expected ErrNoTunnelSection, got %v", err)
	}
}

func TestValidTunnelName(t *testing.T) {
	valid := []string{"web", "web-01", "my_tunnel", "T1", "ssh2"}
	invalid := []string{"", "has space", "a/b", "a.b", "semi;colon", "näme!"}

	for _, name := range valid {
		if !ValidTunnelName(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}
	for _, name := range invalid {
		if ValidTunnelName(name) {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestHashCustomID(t *testing.T) {
	a := HashCustomID("mytunnel")
	b := HashCustomID("mytunnel")
	if a != b {
		t.Errorf("hash is not deterministic: %d vs %d", a, b)
	}
	if a < 0 {
		t.Errorf("hash must be non-negative, got %d", a)
	}
	if a == HashCustomID("othertunnel") {
		t.Error("distinct names unexpectedly collide")
	}
}
