package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/a3tai/mcp-pdf-editor/internal/config"
)

const testVersion = "1.2.3"

func TestPrintVersion(t *testing.T) {
	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w

	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	version = testVersion
	buildTime = "2023-12-01_10:30:00"
	gitCommit = "abc123"

	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
		os.Stdout = originalStdout
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		printVersion()
		w.Close()
	}()

	var buf bytes.Buffer
	io.Copy(&buf, r)
	<-done

	output := buf.String()
	expectedStrings := []string{
		"MCP PDF Editor",
		"Version: " + testVersion,
		"Build Time: 2023-12-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	}
	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("printVersion() output missing expected string: %s\nActual output:\n%s", expected, output)
		}
	}
}

func TestSetupLogging(t *testing.T) {
	originalOutput := log.Writer()
	originalFlags := log.Flags()
	defer func() {
		log.SetOutput(originalOutput)
		log.SetFlags(originalFlags)
	}()

	setupLogging(&config.Config{Mode: "stdio", LogLevel: "debug"})
	if log.Writer() != os.Stderr {
		t.Errorf("setupLogging() for stdio debug mode should set output to stderr")
	}

	setupLogging(&config.Config{Mode: "stdio", LogLevel: "info"})
	if log.Writer() != io.Discard {
		t.Errorf("setupLogging() for stdio non-debug mode should discard logs")
	}

	log.SetOutput(originalOutput)
	setupLogging(&config.Config{Mode: "server", LogLevel: "info"})
	if got, want := log.Flags(), log.LstdFlags|log.Lshortfile; got != want {
		t.Errorf("setupLogging() for server mode: flags = %v, want %v", got, want)
	}
}

func TestNewService(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PDFDirectory = t.TempDir()
	cfg.Duplicates = "share"

	service, err := newService(cfg)
	if err != nil {
		t.Fatalf("newService() unexpected error: %v", err)
	}
	if service.GetMaxFileSize() != cfg.MaxFileSize {
		t.Errorf("GetMaxFileSize() = %d, want %d", service.GetMaxFileSize(), cfg.MaxFileSize)
	}

	cfg.MaxFileSize = 2 * 1024 * 1024 * 1024
	if _, err := newService(cfg); err == nil {
		t.Error("newService() should reject a file size limit above 1GB")
	}

	cfg.MaxFileSize = 1024
	cfg.PDFDirectory = ""
	if _, err := newService(cfg); err == nil {
		t.Error("newService() should reject an empty directory")
	}
}
