package tunnelstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tunnelguard/tunnelguard/internal/frpconfig"
)

const sampleConfig = `[common]
server_addr = frp.example.com
server_port = 7000
tls_enable = false

[web]
type = http
local_ip = 127.0.0.1
local_port = 8080
custom_domains = app.example.com

[ssh]
type = tcp
local_ip = 127.0.0.1
local_port = 22
remote_port = 10022
`

func TestSaveCreatesPerTunnelFiles(t *testing.T) {
	s := New(t.TempDir())

	created, err := s.Save(sampleConfig)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 records, got %d", len(created))
	}

	// Each per-tunnel file carries the common block plus its own section only
	webCfg, err := s.GetConfig("web")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(webCfg, "[common]") || !strings.Contains(webCfg, "[web]") {
		t.Errorf("web config missing sections: %q", webCfg)
	}
	if strings.Contains(webCfg, "[ssh]") {
		t.Errorf("ssh section leaked into web config: %q", webCfg)
	}

	web := created[0]
	if web.TunnelType != "http" || web.CustomDomains != "app.example.com" {
		t.Errorf("unexpected web summary: %+v", web)
	}
	if web.ServerAddr != "frp.example.com" || web.ServerPort != 7000 {
		t.Errorf("common fields not parsed: %+v", web)
	}
	if web.HashedID != frpconfig.HashCustomID("web") {
		t.Errorf("hashed id mismatch: %d", web.HashedID)
	}
}

func TestSaveRejectsInvalidName(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Save("[common]\nserver_addr = x\n\n[bad name]\ntype = tcp\n")
	if !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestSaveRejectsHashedIDCollision(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	// An index entry under a different name already holds the hashed
	// identifier the new tunnel's name maps to
	index := fmt.Sprintf(`[{"id": "taken", "name": "taken", "config_file": "z_taken.ini", "tunnels": ["taken"], "created_at": "2026-01-01T00:00:00Z", "hashed_id": %d}]`,
		frpconfig.HashCustomID("newtunnel"))
	if err := os.WriteFile(filepath.Join(dir, ListFileName), []byte(index), 0o600); err != nil {
		t.Fatal(err)
	}

	doc := "[common]\nserver_addr = x\n\n[newtunnel]\ntype = tcp\nremote_port = 9000\n"
	if _, err := s.Save(doc); !errors.Is(err, ErrIDCollision) {
		t.Errorf("expected ErrIDCollision, got %v", err)
	}

	// Saving over a record with the same name is an update, not a collision
	same := strings.ReplaceAll(index, `"taken"`, `"newtunnel"`)
	if err := os.WriteFile(filepath.Join(dir, ListFileName), []byte(same), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(doc); err != nil {
		t.Errorf("same-name save must not collide: %v", err)
	}
}

func TestSaveRejectsDocumentWithoutTunnelSection(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Save("[common]\nserver_addr = x\n")
	if !errors.Is(err, frpconfig.ErrNoTunnelSection) {
		t.Errorf("expected ErrNoTunnelSection, got %v", err)
	}
}

func TestListRefreshesFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if _, err := s.Save(sampleConfig); err != nil {
		t.Fatal(err)
	}

	// Edit the config file behind the index's back; List must pick it up
	path := filepath.Join(dir, ConfigFileName("ssh"))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.ReplaceAll(string(data), "remote_port = 10022", "remote_port = 20022")
	if err := os.WriteFile(path, []byte(edited), 0o600); err != nil {
		t.Fatal(err)
	}

	records, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range records {
		if rec.ID == "ssh" && rec.RemotePort != 20022 {
			t.Errorf("index not refreshed from file: remote_port = %d", rec.RemotePort)
		}
	}
}

func TestUpdateConfigPreservesCreatedAt(t *testing.T) {
	s := New(t.TempDir())

	created, err := s.Save("[common]\nserver_addr = x\n\n[solo]\ntype = tcp\nremote_port = 9000\n")
	if err != nil {
		t.Fatal(err)
	}
	original := created[0].CreatedAt

	updated, err := s.UpdateConfig("solo", "[common]\nserver_addr = y\n\n[solo]\ntype = tcp\nremote_port = 9001\n")
	if err != nil {
		t.Fatal(err)
	}
	if updated.CreatedAt != original {
		t.Errorf("created_at changed on update: %q vs %q", updated.CreatedAt, original)
	}
	if updated.RemotePort != 9001 {
		t.Errorf("summary not refreshed: %+v", updated)
	}
}

func TestDeleteRemovesFileAndIndexEntry(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	if _, err := s.Save(sampleConfig); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("web"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, ConfigFileName("web"))); !os.IsNotExist(err) {
		t.Error("config file not removed")
	}

	records, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range records {
		if rec.ID == "web" {
			t.Error("index entry not removed")
		}
	}
}

func TestFixTLS(t *testing.T) {
	s := New(t.TempDir())

	if _, err := s.Save(sampleConfig); err != nil {
		t.Fatal(err)
	}

	if err := s.FixTLS("web"); err != nil {
		t.Fatalf("FixTLS failed: %v", err)
	}
	cfg, _ := s.GetConfig("web")
	if strings.Contains(cfg, "tls_enable = false") {
		t.Error("tls_enable still false after FixTLS")
	}

	// Second run has nothing to fix
	if err := s.FixTLS("web"); err == nil {
		t.Error("expected error when tls_enable = false is absent")
	}
}

func TestGetConfigMissing(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.GetConfig("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadOfficialTunnels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunnels.hcl")

	content := `
tunnel "web-ssh" {
  id          = 4221
  type        = "tcp"
  server_addr = "frp.example.com"
  server_port = 7000
  local_port  = 22
  remote_port = 10022
  autostart   = true
}

tunnel "site" {
  id             = 4222
  type           = "http"
  server_addr    = "frp.example.com"
  server_port    = 7000
  local_port     = 8080
  custom_domains = "app.example.com"
  tls            = false
}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	tunnels, err := LoadOfficialTunnels(path)
	if err != nil {
		t.Fatalf("LoadOfficialTunnels failed: %v", err)
	}
	if len(tunnels) != 2 {
		t.Fatalf("expected 2 tunnels, got %d", len(tunnels))
	}

	web, ok := FindOfficialTunnel(tunnels, "web-ssh")
	if !ok {
		t.Fatal("web-ssh not found")
	}
	if web.ID != 4221 || !web.Autostart {
		t.Errorf("unexpected definition: %+v", web)
	}

	cfg := web.TunnelConfig("ut", "nt")
	if cfg.LocalIP != "127.0.0.1" {
		t.Errorf("default local_ip not applied: %q", cfg.LocalIP)
	}
	if !cfg.ForceTLS {
		t.Error("tls should default to true")
	}
	if cfg.UserToken != "ut" || cfg.NodeToken != "nt" {
		t.Error("credentials not applied")
	}

	site, _ := FindOfficialTunnel(tunnels, "site")
	if site.TunnelConfig("", "").ForceTLS {
		t.Error("explicit tls = false not honored")
	}
}

func TestLoadOfficialTunnelsMissingFile(t *testing.T) {
	tunnels, err := LoadOfficialTunnels(filepath.Join(t.TempDir(), "tunnels.hcl"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if tunnels != nil {
		t.Errorf("expected nil, got %v", tunnels)
	}
}
