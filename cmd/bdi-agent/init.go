// ABOUTME: Interactive config generation and group token issuing
// ABOUTME: init writes agent.yaml with a random JWT secret; token signs a group token

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-bdi/internal/auth"
	"github.com/2389/coven-bdi/internal/config"
)

// tokenCLIExpiry bounds tokens the CLI mints for its own requests.
const tokenCLIExpiry = 5 * time.Minute

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("bdi-agent configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Agent ---")
	agentID := prompt(reader, "Agent ID", "robot1")
	group := prompt(reader, "Agent group", agentID+"_group")

	fmt.Println("\n--- Server ---")
	grpcAddr := prompt(reader, "gRPC address", config.DefaultGRPCAddr)
	httpAddr := prompt(reader, "HTTP address", config.DefaultHTTPAddr)

	fmt.Println("\n--- Bus ---")
	backend := prompt(reader, "Bus backend (memory/nats)", config.BusMemory)
	var natsURL string
	if backend == config.BusNATS {
		natsURL = prompt(reader, "NATS URL", "nats://localhost:4222")
	}

	fmt.Println("\n--- Planner ---")
	plannerAddr := prompt(reader, "Planner address (empty for the in-process dev planner)", "")

	fmt.Println("\n--- Plan library ---")
	libPath := prompt(reader, "Plan library path", filepath.Join(getDataPath(), agentID, config.PlanLibraryFileName))

	fmt.Println("\n--- Tailscale ---")
	tailscaleEnabled := yes(prompt(reader, "Enable Tailscale?", "no"))
	var tsHostname, tsAuthKey string
	var tsEphemeral bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", agentID)
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty for TS_AUTHKEY or interactive)", "")
		tsEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
	}

	fmt.Println("\n--- Logging ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	secret, err := randomSecret()
	if err != nil {
		return err
	}

	var cfg strings.Builder
	cfg.WriteString("# bdi-agent configuration\n")
	cfg.WriteString("# Generated by bdi-agent init\n\n")

	cfg.WriteString("agent:\n")
	fmt.Fprintf(&cfg, "  id: %q\n", agentID)
	fmt.Fprintf(&cfg, "  group: %q\n\n", group)

	cfg.WriteString("server:\n")
	fmt.Fprintf(&cfg, "  grpc_addr: %q\n", grpcAddr)
	fmt.Fprintf(&cfg, "  http_addr: %q\n\n", httpAddr)

	cfg.WriteString("tailscale:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", tailscaleEnabled)
	if tailscaleEnabled {
		fmt.Fprintf(&cfg, "  hostname: %q\n", tsHostname)
		if tsAuthKey != "" {
			fmt.Fprintf(&cfg, "  auth_key: %q\n", tsAuthKey)
		}
		fmt.Fprintf(&cfg, "  ephemeral: %t\n", tsEphemeral)
	}
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	fmt.Fprintf(&cfg, "  jwt_secret: %q\n\n", secret)

	cfg.WriteString("bus:\n")
	fmt.Fprintf(&cfg, "  backend: %q\n", backend)
	if natsURL != "" {
		fmt.Fprintf(&cfg, "  nats_url: %q\n", natsURL)
	}
	cfg.WriteString("\n")

	cfg.WriteString("store:\n")
	cfg.WriteString("  embedded: true\n")
	cfg.WriteString("  initial_beliefs: []\n")
	cfg.WriteString("  initial_desires: []\n\n")

	cfg.WriteString("plan_library:\n")
	cfg.WriteString("  enabled: true\n")
	cfg.WriteString("  driver: \"sqlite\"\n")
	fmt.Fprintf(&cfg, "  path: %q\n\n", libPath)

	cfg.WriteString("planner:\n")
	fmt.Fprintf(&cfg, "  addr: %q\n", plannerAddr)
	fmt.Fprintf(&cfg, "  search_timeout: %q\n\n", config.DefaultSearchTimeout.String())

	cfg.WriteString("scheduler:\n")
	fmt.Fprintf(&cfg, "  mode: %q\n", config.ModeImmediate)
	fmt.Fprintf(&cfg, "  reschedule_policy: %q\n", config.PolicyNoPreempt)
	fmt.Fprintf(&cfg, "  comp_plan_tries: %d\n", config.DefaultPlanTries)
	fmt.Fprintf(&cfg, "  exec_plan_tries: %d\n", config.DefaultPlanTries)
	fmt.Fprintf(&cfg, "  abort_surpass_deadline: %g\n", config.DefaultAbortSurpassDeadline)
	fmt.Fprintf(&cfg, "  reschedule_interval: %q\n\n", config.DefaultRescheduleInterval.String())

	cfg.WriteString("requests:\n")
	fmt.Fprintf(&cfg, "  accept_beliefs_r: [%q]\n", group)
	fmt.Fprintf(&cfg, "  accept_beliefs_w: [%q]\n", group)
	fmt.Fprintf(&cfg, "  accept_desires_r: [%q]\n", group)
	fmt.Fprintf(&cfg, "  accept_desires_w: [%q]\n", group)
	cfg.WriteString("  accept_desires_max_pr: [1.0]\n")
	fmt.Fprintf(&cfg, "  max_wait_updates: %d\n", config.DefaultMaxWaitUpdates)
	fmt.Fprintf(&cfg, "  wait_timeout: %q\n\n", config.DefaultWaitTimeout.String())

	cfg.WriteString("peers: {}\n\n")

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", logLevel)
	fmt.Fprintf(&cfg, "  format: %q\n", logFormat)

	if _, err := config.Parse(cfg.String(), false); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(libPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("\n  ✓ Config written to %s\n", outputFile)
	fmt.Printf("  Data directory: %s\n", filepath.Dir(libPath))
	fmt.Println("\nTo start the agent:")
	fmt.Println("  bdi-agent serve")

	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	group := fs.String("group", "", "requester group (token subject)")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime, 0 for no expiry")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if strings.TrimSpace(*group) == "" {
		return fmt.Errorf("--group is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured")
	}

	token, err := issueToken(cfg.Auth.JWTSecret, *group, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func issueToken(secret, group string, ttl time.Duration) (string, error) {
	token, err := auth.NewJWTVerifier([]byte(secret)).Generate(group, ttl)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return token, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func yes(answer string) bool {
	a := strings.ToLower(answer)
	return a == "yes" || a == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
