// ABOUTME: Entry point for menu-gateway, the MCP server in front of the ordering backend
// ABOUTME: Dispatches the serve, stdio, token, health and session subcommands

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/menu-gateway/internal/config"
	"github.com/2389/menu-gateway/internal/gateway"
)

// version is set at build time.
var version = "dev"

const banner = `
  _ __ ___   ___ _ __  _   _        __ _  __ _| |_ _____      ____ _ _   _
 | '_ ' _ \ / _ \ '_ \| | | |_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 | | | | | |  __/ | | | |_| |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |_| |_| |_|\___|_| |_|\__,_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                                   |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: MENU_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/menu-gateway/gateway.yaml > ~/.config/menu-gateway/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MENU_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "menu-gateway", "gateway.yaml")
}

func usage() {
	fmt.Println("Usage: menu-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                       Start the MCP server over HTTP")
	fmt.Println("  stdio                       Serve MCP over stdin/stdout")
	fmt.Println("  token [--name N] [--ttl D]  Issue a bearer token for MCP clients")
	fmt.Println("  health                      Check gateway and restaurant status")
	fmt.Println("  session show [--key K]      Print the stored ordering session")
	fmt.Println("  session reset [--key K]     Delete the stored ordering session")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// A missing .env is fine; a malformed one is not.
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gateway.Version = version

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "stdio":
		err = runStdio(ctx)
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "session":
		err = runSession(ctx, os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Backend:   %s\n", cfg.Backend.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Sessions:  %s (%s)\n", cfg.Session.Backend, cfg.Session.Mode)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		} else if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! MCP endpoint is unauthenticated (auth.jwt_secret not set)")
	}

	fmt.Println()

	logger.Info("starting menu-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Backend.BaseURL,
	)

	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	green.Print("    ▶ ")
	fmt.Printf("MCP:       %s\n\n", gw.MCPEndpoint())

	return gw.Run(ctx)
}

// runStdio serves MCP over stdin/stdout. Logs go to stderr so the protocol
// stream stays clean.
func runStdio(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stderr)
	logger.Info("starting menu-gateway on stdio", "config", configPath)

	c, err := gateway.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building components: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("closing session store", "error", err)
		}
	}()

	return c.MCP.ServeStdio(ctx, os.Stdin, os.Stdout)
}
