package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-pdf-editor/internal/config"
	"github.com/a3tai/mcp-pdf-editor/internal/mcp"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol, so logs go to stderr and only in debug
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// newService creates the PDF service described by cfg
func newService(cfg *config.Config) (*pdf.Service, error) {
	service, err := pdf.NewService(cfg.MaxFileSize, cfg.PDFDirectory,
		pdf.WithCacheEntries(cfg.CacheSize),
		pdf.WithUnits(cfg.Scale),
		pdf.WithFont(cfg.Font),
		pdf.WithDedup(cfg.Dedup),
		pdf.WithDuplicates(cfg.DuplicateMode()),
	)
	if err != nil {
		return nil, err
	}
	if err := service.ValidateConfiguration(); err != nil {
		return nil, err
	}
	return service, nil
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode handles stdio mode execution
func runStdioMode(ctx context.Context, server *mcp.Server) {
	// The parent process controls our lifecycle; exit when stdin closes
	if err := server.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	pdfService, err := newService(cfg)
	if err != nil {
		log.Fatalf("Failed to create PDF service: %v", err)
	}

	server, err := mcp.NewServer(cfg, pdfService)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server)
	} else {
		runStdioMode(ctx, server)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP PDF Editor\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
