// ABOUTME: request subcommand: sends one cross-agent request through the client package
// ABOUTME: Beliefs are written as action arguments, e.g. "robot_at r1 kitchen" or "= battery 0.8 r1"

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/2389/coven-bdi/internal/bdi"
	"github.com/2389/coven-bdi/internal/bus"
	"github.com/2389/coven-bdi/internal/client"
	"github.com/2389/coven-bdi/internal/config"
	"github.com/2389/coven-bdi/internal/wire"
)

const requestUsage = `Usage: bdi-agent request [flags] PEER OP [ARGS]

Operations:
  accepted belief|desire check|write   Ask whether the operation is accepted
  check-belief BELIEF                 Check whether PEER holds BELIEF
  add-belief BELIEF                   Ask PEER to add BELIEF
  del-belief BELIEF                   Ask PEER to delete BELIEF
  check-desire NAME                   Check whether PEER holds desire NAME
  add-desire NAME BELIEF [, BELIEF]   Ask PEER to pursue NAME with the given targets
  del-desire NAME                     Ask PEER to drop desire NAME

BELIEF is "name param..." for predicates, "= name value param..." for
functions and "- name type" for instances.

Flags:
`

// targetSeparator splits the target beliefs of add-desire.
const targetSeparator = ","

type requestFlags struct {
	group     string
	token     string
	addr      string
	priority  float64
	deadline  time.Duration
	wait      bool
	timeout   time.Duration
	requestID string
}

func runRequest(ctx context.Context, args []string) error {
	var f requestFlags
	fs := flag.NewFlagSet("request", flag.ContinueOnError)
	fs.StringVar(&f.group, "group", "", "requester group (default agent.group)")
	fs.StringVar(&f.token, "token", "", "group token (default auth.token, or minted from auth.jwt_secret)")
	fs.StringVar(&f.addr, "addr", "", "peer gRPC address, overriding peers[PEER]")
	fs.Float64Var(&f.priority, "priority", 1, "add-desire priority")
	fs.DurationVar(&f.deadline, "deadline", 0, "add-desire deadline")
	fs.BoolVar(&f.wait, "wait", false, "add-desire: wait on the bus until the peer fulfils the desire")
	fs.DurationVar(&f.timeout, "timeout", client.DefaultRequestTimeout, "request timeout")
	fs.StringVar(&f.requestID, "request-id", "", "pin the request id so a retried write replays the first response")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, requestUsage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return fmt.Errorf("PEER and OP are required")
	}
	peer, op, rest := fs.Arg(0), fs.Arg(1), fs.Args()[2:]

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	var b bus.Bus
	if f.wait {
		if op != "add-desire" {
			return fmt.Errorf("--wait only applies to add-desire")
		}
		if cfg.Bus.Backend != config.BusNATS {
			return fmt.Errorf("--wait needs bus.backend %q", config.BusNATS)
		}
		n, err := bus.NewNATS(cfg.Bus.NATSURL, "bdi-agent-request", logger)
		if err != nil {
			return fmt.Errorf("connecting bus: %w", err)
		}
		defer n.Close()
		b = n
	}

	c, err := newRequestClient(cfg, f, peer, b)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if f.requestID != "" {
		ctx = client.WithRequestID(ctx, f.requestID)
	}

	logger.Debug("sending request", "peer", peer, "op", op, "args", rest)

	switch op {
	case "accepted":
		if len(rest) != 2 {
			return fmt.Errorf("accepted needs KIND and OP")
		}
		ok, maxPr, err := c.IsAcceptedOperation(ctx, peer, wire.Kind(rest[0]), wire.Op(rest[1]))
		if err != nil {
			return err
		}
		fmt.Printf("accepted=%t", ok)
		if maxPr != wire.NoPriorityCap {
			fmt.Printf(" max_priority=%g", maxPr)
		}
		fmt.Println()

	case "check-belief", "add-belief", "del-belief":
		belief, err := bdi.BeliefFromArgs(rest)
		if err != nil {
			return err
		}
		var accepted, result bool
		switch op {
		case "check-belief":
			accepted, result, err = c.CheckBelief(ctx, peer, belief)
		default:
			accepted, result, err = c.UpdBelief(ctx, peer, belief, op == "add-belief")
		}
		if err != nil {
			return err
		}
		printResult(op, accepted, result)

	case "check-desire", "del-desire":
		if len(rest) != 1 {
			return fmt.Errorf("%s needs NAME", op)
		}
		d := bdi.Desire{Name: rest[0]}
		var accepted, result bool
		if op == "check-desire" {
			accepted, result, err = c.CheckDesire(ctx, peer, d)
		} else {
			accepted, result, err = c.UpdDesire(ctx, peer, d, false, false)
		}
		if err != nil {
			return err
		}
		printResult(op, accepted, result)

	case "add-desire":
		d, err := desireFromArgs(rest, f)
		if err != nil {
			return err
		}
		if f.wait {
			if err := c.Monitor(peer, d); err != nil {
				return err
			}
		}
		accepted, updated, err := c.UpdDesire(ctx, peer, d, true, false)
		if err != nil {
			return err
		}
		printResult(op, accepted, updated)
		if f.wait && accepted && updated {
			return waitFulfilled(ctx, c, peer, d)
		}

	default:
		fs.Usage()
		return fmt.Errorf("unknown operation %q", op)
	}
	return nil
}

func newRequestClient(cfg *config.Config, f requestFlags, peer string, b bus.Bus) (*client.Client, error) {
	group := f.group
	if group == "" {
		group = cfg.Agent.Group
	}

	token := f.token
	if token == "" {
		token = cfg.Auth.Token
	}
	if token == "" && cfg.Auth.JWTSecret != "" {
		var err error
		if token, err = issueToken(cfg.Auth.JWTSecret, group, tokenCLIExpiry); err != nil {
			return nil, err
		}
	}

	peers := make(map[string]string, len(cfg.Peers)+1)
	for id, addr := range cfg.Peers {
		peers[id] = addr
	}
	if f.addr != "" {
		peers[peer] = f.addr
	}
	if _, ok := peers[peer]; !ok {
		return nil, fmt.Errorf("%w: %q (add it under peers or pass --addr)", client.ErrUnknownPeer, peer)
	}

	return client.New(client.Config{
		Group:          group,
		Token:          token,
		Peers:          peers,
		Bus:            b,
		RequestTimeout: f.timeout,
	}, nil), nil
}

// desireFromArgs parses "NAME BELIEF [, BELIEF]...".
func desireFromArgs(args []string, f requestFlags) (bdi.Desire, error) {
	if len(args) < 2 {
		return bdi.Desire{}, fmt.Errorf("add-desire needs NAME and at least one target belief")
	}
	d := bdi.Desire{Name: args[0], Priority: f.priority, Deadline: f.deadline}

	var current []string
	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		b, err := bdi.BeliefFromArgs(current)
		if err != nil {
			return err
		}
		d.Target = append(d.Target, b)
		current = nil
		return nil
	}
	for _, a := range args[1:] {
		if a == targetSeparator {
			if err := flush(); err != nil {
				return bdi.Desire{}, err
			}
			continue
		}
		current = append(current, a)
	}
	if err := flush(); err != nil {
		return bdi.Desire{}, err
	}
	if err := d.Validate(); err != nil {
		return bdi.Desire{}, err
	}
	return d, nil
}

// waitFulfilled polls the monitored desire until its targets hold in the
// peer's beliefs or ctx expires.
func waitFulfilled(ctx context.Context, c *client.Client, peer string, d bdi.Desire) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.IsMonitoredDesireFulfilled(peer, d) {
			fmt.Println("fulfilled")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", d.Name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printResult(op string, accepted, result bool) {
	label := "updated"
	if op == "check-belief" || op == "check-desire" {
		label = "found"
	}
	fmt.Printf("accepted=%t %s=%t\n", accepted, label, result)
}
