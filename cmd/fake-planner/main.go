// ABOUTME: Standalone fake planner for local runs and E2E tests of bdi-agent
// ABOUTME: Usage: fake-planner [-addr localhost:50061] [-step 100ms] [-unsolvable a,b]

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/2389/coven-bdi/internal/planner"
	"github.com/2389/coven-bdi/internal/wire"
)

func main() {
	addr := flag.String("addr", "localhost:50061", "gRPC listen address")
	step := flag.Duration("step", 100*time.Millisecond, "delay before each streamed result")
	actionDur := flag.Duration("action-duration", time.Second, "expected duration reported per action")
	unsolvable := flag.String("unsolvable", "", "comma separated desire names the planner always fails")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := planner.FakeConfig{
		StepDelay:      *step,
		ActionDuration: *actionDur,
	}
	for _, name := range strings.Split(*unsolvable, ",") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.Unsolvable = append(cfg.Unsolvable, name)
		}
	}

	if err := run(*addr, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr string, cfg planner.FakeConfig, logger *slog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fake := planner.NewFake(cfg, logger)
	srv := grpc.NewServer()
	wire.RegisterPlannerServer(srv, fake)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down", "served", fake.Served())
		hs.Shutdown()
		srv.GracefulStop()
	}()

	logger.Info("fake planner listening",
		"addr", lis.Addr().String(),
		"step", cfg.StepDelay,
		"unsolvable", cfg.Unsolvable,
	)
	return srv.Serve(lis)
}
