package config

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var envKeys = []string{
	"MODE", "HOST", "PORT", "MAXCONNECTIONS", "DIR", "LOGLEVEL",
	"MAXFILESIZE", "CACHESIZE", "SCALE", "FONT", "DEDUP", "DUPLICATES",
}

// withArgs runs LoadFromFlags-style tests against a fresh flag set and a
// clean MCP_PDF_ environment; viper ignores variables set to "".
func withArgs(t *testing.T, args ...string) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		pflag.CommandLine = pflag.NewFlagSet(originalArgs[0], pflag.ExitOnError)
		viper.Reset()
	})
	for _, key := range envKeys {
		t.Setenv("MCP_PDF_"+key, "")
	}

	os.Args = append([]string{"mcp-pdf-editor"}, args...)
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	withArgs(t)

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "info")
	}
	if cfg.CacheSize != DefaultCacheSize {
		t.Errorf("LoadFromFlags() CacheSize = %v, want %v", cfg.CacheSize, DefaultCacheSize)
	}
	if cfg.Scale != 1 {
		t.Errorf("LoadFromFlags() Scale = %v, want 1", cfg.Scale)
	}
	if cfg.PDFDirectory == "" {
		t.Error("LoadFromFlags() PDFDirectory should not be empty")
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(*Config) bool
	}{
		{
			name:  "server mode with custom host and port",
			args:  []string{"--mode=server", "--host=0.0.0.0", "--port=9090", "--maxconnections=4"},
			check: func(c *Config) bool { return c.IsServerMode() && c.Address() == "0.0.0.0:9090" && c.MaxConnections == 4 },
		},
		{
			name:  "debug logging",
			args:  []string{"--loglevel=debug"},
			check: func(c *Config) bool { return c.IsDebug() },
		},
		{
			name:  "custom max file size",
			args:  []string{"--maxfilesize=50000000"},
			check: func(c *Config) bool { return c.MaxFileSize == 50000000 },
		},
		{
			name:  "editing options",
			args:  []string{"--scale=2", "--font=Courier", "--dedup", "--duplicates=share", "--cachesize=0"},
			check: func(c *Config) bool {
				return c.Scale == 2 && c.Font == "Courier" && c.Dedup && c.Duplicates == "share" && c.CacheSize == 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, append(tt.args, "--dir="+t.TempDir())...)

			cfg, err := LoadFromFlags()
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("LoadFromFlags() = %s", cfg)
			}
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	withArgs(t)
	tempDir := t.TempDir()

	t.Setenv("MCP_PDF_MODE", "server")
	t.Setenv("MCP_PDF_HOST", "192.168.1.1")
	t.Setenv("MCP_PDF_PORT", "3000")
	t.Setenv("MCP_PDF_DIR", tempDir)
	t.Setenv("MCP_PDF_LOGLEVEL", "warn")
	t.Setenv("MCP_PDF_MAXFILESIZE", "200000000")
	t.Setenv("MCP_PDF_SCALE", "0.5")
	t.Setenv("MCP_PDF_DUPLICATES", "share")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "server")
	}
	if cfg.Host != "192.168.1.1" {
		t.Errorf("LoadFromFlags() Host = %v, want %v", cfg.Host, "192.168.1.1")
	}
	if cfg.Port != 3000 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 3000)
	}
	if cfg.PDFDirectory != tempDir {
		t.Errorf("LoadFromFlags() PDFDirectory = %v, want %v", cfg.PDFDirectory, tempDir)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "warn")
	}
	if cfg.MaxFileSize != 200000000 {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, 200000000)
	}
	if cfg.Scale != 0.5 {
		t.Errorf("LoadFromFlags() Scale = %v, want 0.5", cfg.Scale)
	}
	if cfg.Duplicates != "share" {
		t.Errorf("LoadFromFlags() Duplicates = %v, want share", cfg.Duplicates)
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	withArgs(t, "--mode=stdio", "--host=localhost", "--port=8888")

	t.Setenv("MCP_PDF_MODE", "server")
	t.Setenv("MCP_PDF_HOST", "192.168.1.1")
	t.Setenv("MCP_PDF_PORT", "3000")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v (should override env)", cfg.Mode, "stdio")
	}
	if cfg.Host != "localhost" {
		t.Errorf("LoadFromFlags() Host = %v, want %v (should override env)", cfg.Host, "localhost")
	}
	if cfg.Port != 8888 {
		t.Errorf("LoadFromFlags() Port = %v, want %v (should override env)", cfg.Port, 8888)
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "mode", args: []string{"--mode=invalid"}, wantErr: "mode must be either 'stdio' or 'server'"},
		{name: "port", args: []string{"--mode=server", "--port=99999"}, wantErr: "port must be between 1 and 65535"},
		{name: "log level", args: []string{"--loglevel=invalid"}, wantErr: "invalid log level"},
		{name: "scale", args: []string{"--scale=0"}, wantErr: "scale must be a positive number"},
		{name: "duplicates", args: []string{"--duplicates=twice"}, wantErr: "invalid duplicates mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, append(tt.args, "--dir="+t.TempDir())...)

			_, err := LoadFromFlags()
			if err == nil {
				t.Fatalf("LoadFromFlags() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	withArgs(t, "--version")

	_, err := LoadFromFlags()
	if err == nil {
		t.Fatal("LoadFromFlags() expected version error")
	}
	if err.Error() != "version requested" {
		t.Errorf("LoadFromFlags() error = %v, want 'version requested'", err)
	}
}
