package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/xhd2015/psdebug-mcp/config"
	frontend "github.com/xhd2015/psdebug-mcp/frontend/dap"
	psdlog "github.com/xhd2015/psdebug-mcp/log"
	"github.com/xhd2015/psdebug-mcp/metrics"
	"github.com/xhd2015/psdebug-mcp/session"
	"github.com/xhd2015/psdebug-mcp/tools/debug"
)

// install: go install ./cmd/psdebug-mcp
const help = `
psdebug-mcp script runtime breakpoint bridge

Usage: psdebug-mcp <cmd> [OPTIONS]

Available commands:
  help                               show help message

Options:
  --config <file>                    YAML config file
  --listen <listen>                  Serve SSE on this address instead of stdio
  --backend <addr>                   Default runtime service address (default: 127.0.0.1:12764)
  --metrics-listen <listen>          Serve prometheus metrics on this address
  --help   show help message
`

type flags struct {
	config        string
	listen        string
	backend       string
	metricsListen string
}

func main() {
	if err := handle(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (flags, bool, error) {
	var f flags
	n := len(args)
	for i := 0; i < n; i++ {
		arg := args[i]
		var dst *string
		switch arg {
		case "--config":
			dst = &f.config
		case "--listen":
			dst = &f.listen
		case "--backend":
			dst = &f.backend
		case "--metrics-listen":
			dst = &f.metricsListen
		case "-h", "--help":
			return f, true, nil
		default:
			return f, false, fmt.Errorf("unrecognized flag: %s", arg)
		}
		if i+1 >= n {
			return f, false, fmt.Errorf("%s requires arg", arg)
		}
		i++
		*dst = args[i]
	}
	return f, false, nil
}

func loadConfig(f flags) (config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return cfg, err
	}
	config.Merge(&cfg, config.Config{
		Backend: config.BackendConfig{Address: f.backend},
		Server:  config.ServerConfig{Listen: f.listen},
		Metrics: config.MetricsConfig{Listen: f.metricsListen},
	})
	return cfg, nil
}

func handle(args []string) error {
	if len(args) > 0 && args[0] == "help" {
		fmt.Println(strings.TrimSpace(help))
		return nil
	}

	f, showHelp, err := parseFlags(args)
	if err != nil {
		return err
	}
	if showHelp {
		fmt.Println(strings.TrimSpace(help))
		return nil
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	// for append log to file
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	level, err := psdlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := newFileLogger(file, level)

	var stream frontend.Sink
	if cfg.Events.Output != "" {
		out, err := os.OpenFile(cfg.Events.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open event output: %w", err)
		}
		defer out.Close()
		stream = frontend.NewStreamSink(out)
		logger.Infof("writing DAP events to %s", cfg.Events.Output)
	}

	mt := metrics.New()
	if cfg.Metrics.Listen != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metricsMux(mt),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("metrics server: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(ctx)
		}()
		logger.Infof("metrics listening on %s", cfg.Metrics.Listen)
	}

	sessions := session.NewManager(session.Options{
		Logger:      logger,
		Metrics:     mt,
		DialTimeout: cfg.Backend.DialTimeout,
		CallTimeout: cfg.Backend.CallTimeout,
		QueueSize:   cfg.Events.QueueSize,
		Stream:      stream,
	})
	defer func() {
		if err := sessions.CloseAll(); err != nil {
			logger.Errorf("failed to close sessions: %v", err)
		}
	}()

	// Create MCP server
	s := server.NewMCPServer(
		"Script Runtime Breakpoint MCP",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// Register tools
	if err := debug.RegisterTools(s, debug.ToolOptions{
		Sessions:       sessions,
		Logger:         logger,
		DefaultAddress: cfg.Backend.Address,
	}); err != nil {
		return err
	}

	if cfg.Server.Listen == "" {
		log.Printf("MCP Server listening on stdio...")
		return server.ServeStdio(s)
	}
	log.Printf("MCP Server listening on %s...", cfg.Server.Listen)
	sseServer := server.NewSSEServer(s)
	return sseServer.Start(cfg.Server.Listen)
}

func metricsMux(mt *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mt.Handler())
	return mux
}
