// Package config handles configuration loading for a coven-bdi agent.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Missing values receive defaults and the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from BDI_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven-bdi/agent.yaml
//  3. ~/.config/coven-bdi/agent.yaml
//
// A path ending in .toml is decoded as TOML.
//
// # Environment Variable Expansion
//
// Before expansion, the file named by BDI_ENV (default ".env") and its
// ".secret" sidecar are loaded into the environment when present.
// Configuration values can then reference environment variables:
//
//	auth:
//	  jwt_secret: "${BDI_JWT_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	planner:
//	  search_timeout: "30s"
//	requests:
//	  wait_timeout: "5s"
//
// # Configuration Sections
//
// Agent identity and servers:
//
//	agent:
//	  id: "robot1"
//	  group: "robots"
//	server:
//	  grpc_addr: "0.0.0.0:50051"  # cross-agent requests
//	  http_addr: "0.0.0.0:8080"   # health and status API
//
// Snapshot bus and embedded store:
//
//	bus:
//	  backend: "nats"             # memory, nats
//	  nats_url: "nats://127.0.0.1:4222"
//	store:
//	  embedded: true
//	  initial_beliefs:
//	    - {name: "in", params: [{value: "r1"}, {value: "kitchen"}]}
//
// Scheduling:
//
//	scheduler:
//	  mode: "immediate"           # immediate, deferred
//	  reschedule_policy: "no_preempt"
//	  comp_plan_tries: 16
//	  exec_plan_tries: 16
//	  abort_surpass_deadline: 2.0
//
// Cross-agent authorization:
//
//	requests:
//	  accept_beliefs_r: ["robots"]
//	  accept_desires_w: ["robots", "operators"]
//	  accept_desires_max_pr: [0.5, 1.0]  # parallel to accept_desires_w
//	  max_wait_updates: 8
//
// # Validation
//
// Load() validates:
//
//   - JWT secret minimum length (32 bytes) when set
//   - Bus backend, plan library driver, scheduler mode and policy values
//   - Priority caps within [0,1]
//   - Initial beliefs and desires
//
// # Usage
//
//	cfg, err := config.Load("/etc/coven-bdi/agent.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
