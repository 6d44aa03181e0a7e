// ABOUTME: Configuration loading and parsing for a coven-bdi agent
// ABOUTME: Supports YAML or TOML files with .env loading, ${VAR} expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-bdi/internal/bdi"
)

// Defaults applied by Load when a field is left empty.
const (
	DefaultGRPCAddr             = "0.0.0.0:50051"
	DefaultHTTPAddr             = "0.0.0.0:8080"
	DefaultPlanTries            = 16
	DefaultMaxWaitUpdates       = 8
	DefaultWaitTimeout          = 5 * time.Second
	DefaultSearchTimeout        = 30 * time.Second
	DefaultRescheduleInterval   = time.Second
	DefaultAbortSurpassDeadline = 2.0
	DefaultRateLimitRPS         = 50
	DefaultRateLimitBurst       = 20
	PlanLibraryFileName         = "plan_library.db"
	MinJWTSecretLength          = 32
)

// Scheduler modes.
const (
	ModeImmediate = "immediate"
	ModeDeferred  = "deferred"
)

// Reschedule policies.
const (
	PolicyPreempt   = "preempt"
	PolicyNoPreempt = "no_preempt"
)

// Bus backends.
const (
	BusMemory = "memory"
	BusNATS   = "nats"
)

// Config represents the complete agent configuration
type Config struct {
	Agent       AgentConfig       `yaml:"agent" toml:"agent"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Tailscale   TailscaleConfig   `yaml:"tailscale" toml:"tailscale"`
	Auth        AuthConfig        `yaml:"auth" toml:"auth"`
	Bus         BusConfig         `yaml:"bus" toml:"bus"`
	Store       StoreConfig       `yaml:"store" toml:"store"`
	PlanLibrary PlanLibraryConfig `yaml:"plan_library" toml:"plan_library"`
	Planner     PlannerConfig     `yaml:"planner" toml:"planner"`
	Scheduler   SchedulerConfig   `yaml:"scheduler" toml:"scheduler"`
	Requests    RequestsConfig    `yaml:"requests" toml:"requests"`
	Peers       map[string]string `yaml:"peers" toml:"peers"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// AgentConfig identifies this agent within the fleet
type AgentConfig struct {
	ID    string `yaml:"id" toml:"id"`
	Group string `yaml:"group" toml:"group"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// AuthConfig holds authentication configuration.
// An empty JWTSecret disables bearer auth on cross-agent requests.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	Token     string `yaml:"token" toml:"token"` // presented to peers by the client
}

// BusConfig selects the pub/sub transport for snapshots and mutation intents
type BusConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	NATSURL string `yaml:"nats_url" toml:"nats_url"`
}

// StoreConfig controls the embedded authoritative belief/desire store
type StoreConfig struct {
	Embedded       bool         `yaml:"embedded" toml:"embedded"`
	InitialBeliefs []bdi.Belief `yaml:"initial_beliefs" toml:"initial_beliefs"`
	InitialDesires []bdi.Desire `yaml:"initial_desires" toml:"initial_desires"`
}

// PlanLibraryConfig holds plan cache configuration
type PlanLibraryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Driver  string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
	Path    string `yaml:"path" toml:"path"`
}

// PlannerConfig points at the external incremental planner
type PlannerConfig struct {
	Addr          string        `yaml:"addr" toml:"addr"`
	SearchTimeout time.Duration `yaml:"-" toml:"-"`

	SearchTimeoutRaw string `yaml:"search_timeout" toml:"search_timeout"`
}

// SchedulerConfig holds intention scheduler policy
type SchedulerConfig struct {
	Mode                 string        `yaml:"mode" toml:"mode"`
	ReschedulePolicy     string        `yaml:"reschedule_policy" toml:"reschedule_policy"`
	CompPlanTries        int           `yaml:"comp_plan_tries" toml:"comp_plan_tries"`
	ExecPlanTries        int           `yaml:"exec_plan_tries" toml:"exec_plan_tries"`
	AbortSurpassDeadline float64       `yaml:"abort_surpass_deadline" toml:"abort_surpass_deadline"`
	RescheduleInterval   time.Duration `yaml:"-" toml:"-"`

	RescheduleIntervalRaw string `yaml:"reschedule_interval" toml:"reschedule_interval"`
}

// RequestsConfig holds the cross-agent authorization policy and wait budget
type RequestsConfig struct {
	AcceptBeliefsR      []string      `yaml:"accept_beliefs_r" toml:"accept_beliefs_r"`
	AcceptBeliefsW      []string      `yaml:"accept_beliefs_w" toml:"accept_beliefs_w"`
	AcceptDesiresR      []string      `yaml:"accept_desires_r" toml:"accept_desires_r"`
	AcceptDesiresW      []string      `yaml:"accept_desires_w" toml:"accept_desires_w"`
	AcceptDesiresMaxPr  []float64     `yaml:"accept_desires_max_pr" toml:"accept_desires_max_pr"`
	MaxWaitUpdates      int           `yaml:"max_wait_updates" toml:"max_wait_updates"`
	RateLimitRPS        float64       `yaml:"rate_limit_rps" toml:"rate_limit_rps"`
	RateLimitBurst      int           `yaml:"rate_limit_burst" toml:"rate_limit_burst"`
	WaitTimeout         time.Duration `yaml:"-" toml:"-"`

	WaitTimeoutRaw string `yaml:"wait_timeout" toml:"wait_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file (BDI_ENV, default ".env") and its ".secret" sidecar are loaded
// into the environment first; ${VAR_NAME} patterns are then expanded.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(expandEnvVars(string(data)), strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes already-expanded configuration content, then applies
// defaults and validates.
func Parse(content string, isTOML bool) (*Config, error) {
	var cfg Config
	// Zero value of Embedded must not win over the default, so decode into
	// a pre-populated struct.
	cfg.Store.Embedded = true
	cfg.PlanLibrary.Enabled = true

	if isTOML {
		if _, err := toml.Decode(content, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// loadEnvFiles populates the environment from dotenv files, ignoring
// missing files.
func loadEnvFiles() {
	envFile := os.Getenv("BDI_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Agent.ID == "" {
		c.Agent.ID = "agent0"
	}
	if c.Agent.Group == "" {
		c.Agent.Group = c.Agent.ID + "_group"
	}
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = DefaultGRPCAddr
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Bus.Backend == "" {
		c.Bus.Backend = BusMemory
	}
	if c.PlanLibrary.Driver == "" {
		c.PlanLibrary.Driver = "sqlite"
	}
	if c.PlanLibrary.Path == "" {
		c.PlanLibrary.Path = filepath.Join(os.TempDir(), c.Agent.ID, PlanLibraryFileName)
	}
	if c.Planner.SearchTimeout == 0 {
		c.Planner.SearchTimeout = DefaultSearchTimeout
	}
	if c.Scheduler.Mode == "" {
		c.Scheduler.Mode = ModeImmediate
	}
	if c.Scheduler.ReschedulePolicy == "" {
		c.Scheduler.ReschedulePolicy = PolicyNoPreempt
	}
	if c.Scheduler.CompPlanTries <= 0 {
		c.Scheduler.CompPlanTries = DefaultPlanTries
	}
	if c.Scheduler.ExecPlanTries <= 0 {
		c.Scheduler.ExecPlanTries = DefaultPlanTries
	}
	if c.Scheduler.AbortSurpassDeadline <= 0 {
		c.Scheduler.AbortSurpassDeadline = DefaultAbortSurpassDeadline
	}
	if c.Scheduler.RescheduleInterval == 0 {
		c.Scheduler.RescheduleInterval = DefaultRescheduleInterval
	}
	if c.Requests.MaxWaitUpdates <= 0 {
		c.Requests.MaxWaitUpdates = DefaultMaxWaitUpdates
	}
	if c.Requests.WaitTimeout == 0 {
		c.Requests.WaitTimeout = DefaultWaitTimeout
	}
	if c.Requests.RateLimitRPS <= 0 {
		c.Requests.RateLimitRPS = DefaultRateLimitRPS
	}
	if c.Requests.RateLimitBurst <= 0 {
		c.Requests.RateLimitBurst = DefaultRateLimitBurst
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if strings.ContainsAny(c.Agent.ID, " ./*>") {
		return fmt.Errorf("agent.id %q must not contain spaces, dots, slashes or wildcards", c.Agent.ID)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Bus.Backend {
	case BusMemory:
		if !c.Store.Embedded {
			return fmt.Errorf("bus.backend %q requires store.embedded", BusMemory)
		}
	case BusNATS:
		if c.Bus.NATSURL == "" {
			return fmt.Errorf("bus.nats_url is required when bus.backend is %q", BusNATS)
		}
	default:
		return fmt.Errorf("bus.backend %q is not one of memory, nats", c.Bus.Backend)
	}

	switch c.PlanLibrary.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("plan_library.driver %q is not one of sqlite, sqlite3", c.PlanLibrary.Driver)
	}

	switch c.Scheduler.Mode {
	case ModeImmediate, ModeDeferred:
	default:
		return fmt.Errorf("scheduler.mode %q is not one of immediate, deferred", c.Scheduler.Mode)
	}

	switch c.Scheduler.ReschedulePolicy {
	case PolicyPreempt, PolicyNoPreempt:
	default:
		return fmt.Errorf("scheduler.reschedule_policy %q is not one of preempt, no_preempt", c.Scheduler.ReschedulePolicy)
	}

	for i, p := range c.Requests.AcceptDesiresMaxPr {
		if p < 0 || p > 1 {
			return fmt.Errorf("requests.accept_desires_max_pr[%d] = %v outside [0,1]", i, p)
		}
	}

	for _, b := range c.Store.InitialBeliefs {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("store.initial_beliefs: %w", err)
		}
	}
	for _, d := range c.Store.InitialDesires {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("store.initial_desires: %w", err)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"planner.search_timeout", cfg.Planner.SearchTimeoutRaw, &cfg.Planner.SearchTimeout},
		{"scheduler.reschedule_interval", cfg.Scheduler.RescheduleIntervalRaw, &cfg.Scheduler.RescheduleInterval},
		{"requests.wait_timeout", cfg.Requests.WaitTimeoutRaw, &cfg.Requests.WaitTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}

	return nil
}
