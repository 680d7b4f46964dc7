package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %s", err)
	}
	if cfg.Admin != "admin" {
		t.Errorf("expected admin model admin, got %s", cfg.Admin)
	}
	if model, ok := cfg.Model("admin"); !ok || model.Store.Type != StoreMemory {
		t.Errorf("expected in-memory admin model, got %v", model)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown transport",
			modify:  func(c *Config) { c.Messages.Transport = "carrier-pigeon" },
			wantErr: true,
		},
		{
			name:    "nats without url",
			modify:  func(c *Config) { c.Messages.Transport = TransportNATS },
			wantErr: true,
		},
		{
			name:    "missing admin model",
			modify:  func(c *Config) { c.Admin = "other" },
			wantErr: true,
		},
		{
			name: "duplicate model",
			modify: func(c *Config) {
				c.Models = append(c.Models, c.Models[0])
			},
			wantErr: true,
		},
		{
			name:    "leveldb without path",
			modify:  func(c *Config) { c.Models[0].Store = StoreConfig{Type: StoreLevelDB} },
			wantErr: true,
		},
		{
			name:    "sql store",
			modify:  func(c *Config) { c.Models[0].Store = StoreConfig{Type: StoreSQL, Driver: "sqlite", DSN: "swb.db"} },
			wantErr: false,
		},
		{
			name:    "unknown store",
			modify:  func(c *Config) { c.Models[0].Store.Type = "sdb" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "swb.yaml")

	content := `
node: node-a
http:
  addr: ":9090"
  shutdown_timeout: 2s
messages:
  transport: udp
  peers: ["10.0.0.2:9494"]
admin: onto
models:
  - name: onto
    namespace: "http://example.org/onto#"
    store:
      type: leveldb
      path: data/onto
      cache: true
  - name: content
    namespace: "http://example.org/content#"
    graph: "http://example.org/content"
    store:
      type: sql
      driver: sqlite
      dsn: content.db
      schema: /etc/swb/schema.xml
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Node != "node-a" {
		t.Errorf("expected node node-a, got %s", cfg.Node)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ShutdownTimeout != 2*time.Second {
		t.Errorf("expected shutdown timeout 2s, got %s", cfg.HTTP.ShutdownTimeout)
	}
	if cfg.HTTP.MaxConnections != 256 {
		t.Errorf("expected default max connections to be kept, got %d", cfg.HTTP.MaxConnections)
	}
	if cfg.Messages.Listen != ":9494" {
		t.Errorf("expected default listen address to be kept, got %s", cfg.Messages.Listen)
	}
	if len(cfg.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(cfg.Models))
	}

	onto, _ := cfg.Model("onto")
	if want := filepath.Join(tmpDir, "data", "onto"); onto.Store.Path != want {
		t.Errorf("expected path %s, got %s", want, onto.Store.Path)
	}
	if !onto.Store.Cache {
		t.Error("expected cached onto store")
	}

	content2, _ := cfg.Model("content")
	if content2.Store.Schema != "/etc/swb/schema.xml" {
		t.Errorf("expected absolute schema path to be kept, got %s", content2.Store.Schema)
	}
}

func TestLoad_Invalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "swb.yaml")
	if err := os.WriteFile(configPath, []byte("admin: missing\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath, nil); err == nil {
		t.Error("expected validation error")
	}
}

func TestSaveToFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "swb.yaml")

	cfg := Default()
	cfg.Node = "saved"
	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := Load(configPath, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Node != "saved" {
		t.Errorf("expected node saved, got %s", loaded.Node)
	}
}
