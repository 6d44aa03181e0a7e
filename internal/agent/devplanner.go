// ABOUTME: In-process development planner reached over an in-memory gRPC pipe
// ABOUTME: Used when no planner.addr is configured

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/2389/coven-bdi/internal/planner"
	"github.com/2389/coven-bdi/internal/wire"
)

const devPlannerBuffer = 1 << 20

type devPlanner struct {
	fake   *planner.Fake
	server *grpc.Server
	conn   *grpc.ClientConn
}

func startDevPlanner(logger *slog.Logger) (*devPlanner, error) {
	lis := bufconn.Listen(devPlannerBuffer)
	fake := planner.NewFake(planner.FakeConfig{}, logger)
	srv := grpc.NewServer()
	wire.RegisterPlannerServer(srv, fake)
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("development planner stopped", "error", err)
		}
	}()

	conn, err := grpc.NewClient("passthrough:///dev-planner",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		srv.Stop()
		return nil, fmt.Errorf("connecting to development planner: %w", err)
	}
	return &devPlanner{fake: fake, server: srv, conn: conn}, nil
}

func (d *devPlanner) Close() error {
	err := d.conn.Close()
	d.server.Stop()
	return err
}
