// Package main is the entry point for relayd, the module runtime daemon.
//
// relayd loads every module in the catalog directory, serves the REST API
// for invoking provider operations and managing cookies, and accepts
// challenge solvers over WebSocket.
//
// Configuration:
//   - Defaults
//   - TOML file named by --config or RELAY_CONFIG
//   - RELAY_* environment variables
//   - CLI flags (override everything)
//
// Usage:
//
//	relayd --modules ./modules --port 8000
//	relayd --config relay.toml --dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/relay/internal/infrastructure/config"
	"github.com/GriffinCanCode/relay/internal/infrastructure/server"
)

func main() {
	configPath := pflag.String("config", os.Getenv(config.FileEnv), "Path to a TOML config file")
	port := pflag.StringP("port", "p", "", "HTTP port (overrides config)")
	host := pflag.String("host", "", "HTTP bind address (overrides config)")
	modules := pflag.StringP("modules", "m", "", "Module catalog directory (overrides config)")
	dev := pflag.Bool("dev", false, "Development logging (colored, debug level)")
	pflag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayd: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *modules != "" {
		cfg.Modules.Dir = *modules
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayd: failed to create server: %v\n", err)
		os.Exit(1)
	}

	runErr := srv.Run(ctx)
	if err := srv.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "relayd: error during shutdown: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "relayd: server error: %v\n", runErr)
		os.Exit(1)
	}
}
