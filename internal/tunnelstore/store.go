// Package tunnelstore persists custom tunnel definitions: one INI config file
// per tunnel plus a JSON index with parsed summaries. The per-tunnel file is
// the source of truth; the index is denormalized and refreshed from the files
// on every read.
package tunnelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tunnelguard/tunnelguard/internal/frpconfig"
)

const (
	configFilePrefix = "z_"
	configFileExt    = ".ini"

	// ListFileName is the JSON index of custom tunnel summaries.
	ListFileName = "custom_tunnels.json"
)

var (
	// ErrInvalidName rejects tunnel names with characters outside
	// letters, digits, underscore and hyphen.
	ErrInvalidName = errors.New("tunnel names may only contain letters, digits, underscores and hyphens")

	// ErrNotFound is returned when a tunnel id has no config file.
	ErrNotFound = errors.New("custom tunnel config file does not exist")

	// ErrIDCollision is returned when a new tunnel's hashed identifier
	// collides with an existing record's.
	ErrIDCollision = errors.New("tunnel name hashes to an identifier already in use")
)

// Record is one custom tunnel's entry in the index. The parsed summary fields
// are denormalized from the config file and overwritten on every List.
type Record struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	ConfigFile    string   `json:"config_file"`
	ServerAddr    string   `json:"server_addr,omitempty"`
	ServerPort    int      `json:"server_port,omitempty"`
	Tunnels       []string `json:"tunnels"`
	TunnelType    string   `json:"tunnel_type,omitempty"`
	CustomDomains string   `json:"custom_domains,omitempty"`
	Subdomain     string   `json:"subdomain,omitempty"`
	LocalIP       string   `json:"local_ip,omitempty"`
	LocalPort     int      `json:"local_port,omitempty"`
	RemotePort    int      `json:"remote_port,omitempty"`
	CreatedAt     string   `json:"created_at"`
	HashedID      int32    `json:"hashed_id"`
}

// Store manages the custom tunnel files inside one application directory.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// ConfigFileName returns the on-disk file name for a custom tunnel. The
// prefix keeps custom configs from ever colliding with official tunnel
// configs, which use a different prefix.
func ConfigFileName(name string) string {
	return configFilePrefix + name + configFileExt
}

// IsConfigFileName reports whether base names a custom tunnel config file.
func IsConfigFileName(base string) bool {
	return strings.HasPrefix(base, configFilePrefix) && strings.HasSuffix(base, configFileExt)
}

func (s *Store) ConfigPath(name string) string {
	return filepath.Join(s.dir, ConfigFileName(name))
}

func (s *Store) listPath() string {
	return filepath.Join(s.dir, ListFileName)
}

// Save splits a possibly multi-tunnel config document and creates one custom
// tunnel per section: a per-tunnel config file holding the shared common
// block plus that tunnel's own block, and an index entry. Returns the created
// records.
func (s *Store) Save(configContent string) ([]Record, error) {
	common, blocks, err := frpconfig.Split(configContent)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	existing, err := s.readList()
	if err != nil {
		return nil, err
	}

	created := make([]Record, 0, len(blocks))
	for _, block := range blocks {
		if !frpconfig.ValidTunnelName(block.Name) {
			return nil, ErrInvalidName
		}

		hashed := frpconfig.HashCustomID(block.Name)
		for _, rec := range existing {
			if rec.ID != block.Name && rec.HashedID == hashed {
				return nil, fmt.Errorf("%w: %q and %q both map to %d",
					ErrIDCollision, block.Name, rec.ID, hashed)
			}
		}

		single := block.Text
		if strings.TrimSpace(common) != "" {
			single = common + "\n\n" + block.Text
		}

		if err := os.WriteFile(s.ConfigPath(block.Name), []byte(single), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write config file: %w", err)
		}

		rec := recordFromConfig(block.Name, single)
		rec.CreatedAt = time.Now().Format(time.RFC3339)
		if err := s.upsert(rec); err != nil {
			return nil, err
		}
		created = append(created, rec)
	}

	return created, nil
}

// List returns all custom tunnels. Each record's summary fields are refreshed
// from its config file; the index only supplies identity and creation time.
func (s *Store) List() ([]Record, error) {
	records, err := s.readList()
	if err != nil {
		return nil, err
	}

	for i, rec := range records {
		data, err := os.ReadFile(filepath.Join(s.dir, rec.ConfigFile))
		if err == nil {
			refreshed := recordFromConfig(rec.ID, string(data))
			refreshed.CreatedAt = rec.CreatedAt
			records[i] = refreshed
		} else {
			records[i].HashedID = frpconfig.HashCustomID(rec.ID)
		}
	}

	return records, nil
}

// Get returns one tunnel's record, refreshed from its config file.
func (s *Store) Get(name string) (Record, error) {
	records, err := s.List()
	if err != nil {
		return Record{}, err
	}
	for _, rec := range records {
		if rec.ID == name {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("custom tunnel %q not found", name)
}

// GetConfig returns the verbatim config file content for a tunnel.
func (s *Store) GetConfig(name string) (string, error) {
	data, err := os.ReadFile(s.ConfigPath(name))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return string(data), nil
}

// UpdateConfig replaces a tunnel's config file and refreshes its index entry,
// preserving the original creation timestamp.
func (s *Store) UpdateConfig(name, configContent string) (Record, error) {
	if err := os.WriteFile(s.ConfigPath(name), []byte(configContent), 0o600); err != nil {
		return Record{}, fmt.Errorf("failed to write config file: %w", err)
	}

	existing, err := s.readList()
	if err != nil {
		return Record{}, err
	}

	createdAt := time.Now().Format(time.RFC3339)
	for _, rec := range existing {
		if rec.ID == name {
			createdAt = rec.CreatedAt
			break
		}
	}

	rec := recordFromConfig(name, configContent)
	rec.CreatedAt = createdAt
	if err := s.upsert(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete removes a tunnel's config file and index entry. The caller is
// responsible for stopping a running process first.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.ConfigPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove config file: %w", err)
	}

	records, err := s.readList()
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, rec := range records {
		if rec.ID != name {
			kept = append(kept, rec)
		}
	}
	return s.writeList(kept)
}

// FixTLS flips tls_enable from false to true in a tunnel's config file.
// Errors when the file does not contain the disabled setting.
func (s *Store) FixTLS(name string) error {
	content, err := s.GetConfig(name)
	if err != nil {
		return err
	}

	fixed := strings.ReplaceAll(content, "tls_enable = false", "tls_enable = true")
	if fixed == content {
		return errors.New("config does not contain tls_enable = false")
	}

	if err := os.WriteFile(s.ConfigPath(name), []byte(fixed), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func recordFromConfig(name, content string) Record {
	summary := frpconfig.Parse(content)
	return Record{
		ID:            name,
		Name:          name,
		ConfigFile:    ConfigFileName(name),
		ServerAddr:    summary.ServerAddr,
		ServerPort:    summary.ServerPort,
		Tunnels:       summary.TunnelNames,
		TunnelType:    summary.TunnelType,
		CustomDomains: summary.CustomDomains,
		Subdomain:     summary.Subdomain,
		LocalIP:       summary.LocalIP,
		LocalPort:     summary.LocalPort,
		RemotePort:    summary.RemotePort,
		HashedID:      frpconfig.HashCustomID(name),
	}
}

func (s *Store) readList() ([]Record, error) {
	data, err := os.ReadFile(s.listPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tunnel list: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse tunnel list: %w", err)
	}
	return records, nil
}

func (s *Store) writeList(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize tunnel list: %w", err)
	}
	if err := os.WriteFile(s.listPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to save tunnel list: %w", err)
	}
	return nil
}

func (s *Store) upsert(rec Record) error {
	records, err := s.readList()
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return s.writeList(records)
}
