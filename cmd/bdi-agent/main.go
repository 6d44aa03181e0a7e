// ABOUTME: Entry point for bdi-agent: runs one BDI agent and talks to running ones
// ABOUTME: Subcommands serve, init, token, health, status and request

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/coven-bdi/internal/agent"
	"github.com/2389/coven-bdi/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _         _ _
 | |__   __| (_)       __ _  __ _  ___ _ __ | |_
 | '_ \ / _' | |_____ / _' |/ _' |/ _ \ '_ \| __|
 | |_) | (_| | |_____| (_| | (_| |  __/ | | | |_
 |_.__/ \__,_|_|      \__,_|\__, |\___|_| |_|\__|
                            |___/
`

// getConfigPath returns the path to the agent config file.
// Priority: BDI_CONFIG env var > XDG_CONFIG_HOME/coven-bdi/agent.yaml > ~/.config/coven-bdi/agent.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BDI_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "agent.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven-bdi", "agent.yaml")
}

// getDataPath returns the agent data directory.
// Priority: XDG_DATA_HOME/coven-bdi > ~/.local/share/coven-bdi
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven-bdi")
}

func usage() {
	fmt.Println("Usage: bdi-agent <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                        Start the agent")
	fmt.Println("  init                         Create a new config file interactively")
	fmt.Println("  token --group GROUP [--ttl]  Issue a group token signed with auth.jwt_secret")
	fmt.Println("  health                       Check agent readiness")
	fmt.Println("  status                       Print the agent status")
	fmt.Println("  request PEER OP [ARGS]       Send a cross-agent request (see request -h)")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "status":
		err = runStatus(ctx)
	case "request":
		err = runRequest(ctx, os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stderr)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Agent:     %s (group %s)\n", cfg.Agent.ID, cfg.Agent.Group)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Bus:       %s", cfg.Bus.Backend)
	if cfg.Bus.Backend == config.BusNATS {
		gray.Printf(" (%s)", cfg.Bus.NATSURL)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Planner:   ")
	if cfg.Planner.Addr == "" {
		yellow.Println("in-process dev planner")
	} else {
		fmt.Println(cfg.Planner.Addr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Scheduler: %s, %s\n", cfg.Scheduler.Mode, cfg.Scheduler.ReschedulePolicy)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.Auth.JWTSecret == "" {
		green.Print("    ▶ ")
		yellow.Println("Auth:      disabled (request policy only)")
	}

	fmt.Println()

	logger.Info("starting bdi-agent",
		"config", configPath,
		"agent_id", cfg.Agent.ID,
		"grpc_addr", cfg.Server.GRPCAddr,
		"http_addr", cfg.Server.HTTPAddr,
	)

	a, err := agent.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating agent: %w", err)
	}

	return a.Run(ctx)
}

// getHTTP fetches path from the configured agent's status server.
func getHTTP(ctx context.Context, path string, withToken bool) (int, []byte, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return 0, nil, fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	if withToken && cfg.Auth.JWTSecret != "" {
		token, err := issueToken(cfg.Auth.JWTSecret, cfg.Agent.Group, tokenCLIExpiry)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func runHealth(ctx context.Context) error {
	code, _, err := getHTTP(ctx, "/health/ready", false)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("not ready: status %d", code)
	}

	fmt.Println("ready")
	return nil
}

func runStatus(ctx context.Context) error {
	code, body, err := getHTTP(ctx, "/api/status", true)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("status: %d %s", code, body)
	}

	fmt.Println(string(body))
	return nil
}
