// ABOUTME: Cross-agent communications client addressing peers by agent id
// ABOUTME: Wraps the AgentRequests RPCs with group, bearer token and request id

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"github.com/2389/coven-bdi/internal/auth"
	"github.com/2389/coven-bdi/internal/bdi"
	"github.com/2389/coven-bdi/internal/bus"
	"github.com/2389/coven-bdi/internal/wire"
)

// ErrUnknownPeer is returned for an agent id missing from the peers map.
var ErrUnknownPeer = errors.New("unknown peer")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("client closed")

// DefaultRequestTimeout bounds a request when the caller's context has
// no deadline. Writes wait on the peer's store, so it must exceed the
// peer's requests.wait_timeout.
const DefaultRequestTimeout = 15 * time.Second

// RequestIDHeader carries a per-request id for correlating peer logs.
const RequestIDHeader = wire.RequestIDHeader

type requestIDKey struct{}

// WithRequestID pins the request id of calls made with ctx. Retrying a
// write with the same id returns the peer's first response instead of
// applying it again.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Config configures a Client.
type Config struct {
	// Group is the requester group sent with every request.
	Group string
	// Token is the bearer token presented to peers. Empty sends none.
	Token string
	// Peers maps agent ids to gRPC addresses.
	Peers map[string]string
	// Bus carries peers' belief snapshots for desire monitoring. Nil
	// disables monitoring.
	Bus bus.Bus
	// RequestTimeout defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration
	// DialOptions are appended to the defaults.
	DialOptions []grpc.DialOption
}

// Client talks to peer agents. It is safe for concurrent use.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	conns    map[string]*grpc.ClientConn
	monitors map[string]*monitor
	closed   bool
}

// New creates a client. Connections are made lazily on first use.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Client{
		cfg:      cfg,
		logger:   logger.With("component", "client", "group", cfg.Group),
		conns:    make(map[string]*grpc.ClientConn),
		monitors: make(map[string]*monitor),
	}
}

// Peers returns the configured peer ids.
func (c *Client) Peers() []string {
	ids := make([]string, 0, len(c.cfg.Peers))
	for id := range c.cfg.Peers {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) rpc(peer string) (*wire.AgentRequestsClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if conn, ok := c.conns[peer]; ok {
		return wire.NewAgentRequestsClient(conn), nil
	}
	addr, ok := c.cfg.Peers[peer]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                15 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if c.cfg.Token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(auth.BearerToken{Token: c.cfg.Token}))
	}
	opts = append(opts, c.cfg.DialOptions...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s at %s: %w", peer, addr, err)
	}
	c.conns[peer] = conn
	c.logger.Debug("peer connection created", "peer", peer, "addr", addr)
	return wire.NewAgentRequestsClient(conn), nil
}

// callContext applies the default timeout and the pinned or a fresh
// request id.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc, string) {
	id, _ := ctx.Value(requestIDKey{}).(string)
	if id == "" {
		id = uuid.New().String()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, RequestIDHeader, id)
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}, id
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	return ctx, cancel, id
}

// IsAcceptedOperation asks peer whether this client's group may perform
// op on kind, and with which desire priority cap.
func (c *Client) IsAcceptedOperation(ctx context.Context, peer string, kind wire.Kind, op wire.Op) (bool, float64, error) {
	rpc, err := c.rpc(peer)
	if err != nil {
		return false, wire.NoPriorityCap, err
	}
	ctx, cancel, _ := c.callContext(ctx)
	defer cancel()
	resp, err := rpc.IsAcceptedOperation(ctx, &wire.IsAcceptedOperationRequest{Group: c.cfg.Group, Kind: kind, Op: op})
	if err != nil {
		return false, wire.NoPriorityCap, fmt.Errorf("is_accepted_operation on %s: %w", peer, err)
	}
	return resp.Accepted, resp.MaxPriority, nil
}

// CheckBelief asks peer whether it holds b.
func (c *Client) CheckBelief(ctx context.Context, peer string, b bdi.Belief) (accepted, found bool, err error) {
	rpc, err := c.rpc(peer)
	if err != nil {
		return false, false, err
	}
	ctx, cancel, id := c.callContext(ctx)
	defer cancel()
	resp, err := rpc.CheckBelief(ctx, &wire.BeliefRequest{Group: c.cfg.Group, Belief: b})
	if err != nil {
		return false, false, fmt.Errorf("check_belief on %s: %w", peer, err)
	}
	c.logger.Debug("check belief", "peer", peer, "request_id", id, "belief", b.String(), "accepted", resp.Accepted, "found", resp.Found)
	return resp.Accepted, resp.Found, nil
}

// UpdBelief adds (add=true) or deletes b on peer.
func (c *Client) UpdBelief(ctx context.Context, peer string, b bdi.Belief, add bool) (accepted, updated bool, err error) {
	rpc, err := c.rpc(peer)
	if err != nil {
		return false, false, err
	}
	ctx, cancel, id := c.callContext(ctx)
	defer cancel()

	req := &wire.BeliefRequest{Group: c.cfg.Group, Belief: b}
	var resp *wire.UpdateResponse
	if add {
		resp, err = rpc.AddBelief(ctx, req)
	} else {
		resp, err = rpc.DelBelief(ctx, req)
	}
	if err != nil {
		return false, false, fmt.Errorf("upd_belief on %s: %w", peer, err)
	}
	c.logger.Debug("upd belief", "peer", peer, "request_id", id, "belief", b.String(), "add", add, "accepted", resp.Accepted, "updated", resp.Updated)
	return resp.Accepted, resp.Updated, nil
}

// CheckDesire asks peer whether it holds d.
func (c *Client) CheckDesire(ctx context.Context, peer string, d bdi.Desire) (accepted, found bool, err error) {
	rpc, err := c.rpc(peer)
	if err != nil {
		return false, false, err
	}
	ctx, cancel, _ := c.callContext(ctx)
	defer cancel()
	resp, err := rpc.CheckDesire(ctx, &wire.DesireRequest{Group: c.cfg.Group, Desire: d})
	if err != nil {
		return false, false, fmt.Errorf("check_desire on %s: %w", peer, err)
	}
	return resp.Accepted, resp.Found, nil
}

// UpdDesire adds (add=true) or deletes d on peer. With watch set, an
// accepted and performed add starts monitoring d's fulfilment.
func (c *Client) UpdDesire(ctx context.Context, peer string, d bdi.Desire, add, watch bool) (accepted, updated bool, err error) {
	rpc, err := c.rpc(peer)
	if err != nil {
		return false, false, err
	}
	ctx, cancel, id := c.callContext(ctx)
	defer cancel()

	req := &wire.DesireRequest{Group: c.cfg.Group, Desire: d}
	var resp *wire.UpdateResponse
	if add {
		resp, err = rpc.AddDesire(ctx, req)
	} else {
		resp, err = rpc.DelDesire(ctx, req)
	}
	if err != nil {
		return false, false, fmt.Errorf("upd_desire on %s: %w", peer, err)
	}
	c.logger.Debug("upd desire", "peer", peer, "request_id", id, "desire", d.Name, "add", add, "accepted", resp.Accepted, "updated", resp.Updated)

	if add && watch && resp.Accepted && resp.Updated {
		if err := c.Monitor(peer, d); err != nil {
			c.logger.Warn("cannot monitor desire", "peer", peer, "desire", d.Name, "error", err)
		}
	}
	return resp.Accepted, resp.Updated, nil
}

// Close stops monitoring and closes peer connections.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conns := c.conns
	monitors := c.monitors
	c.conns = nil
	c.monitors = nil
	c.mu.Unlock()

	var errs []error
	for _, m := range monitors {
		if err := m.sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	for peer, conn := range conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", peer, err))
		}
	}
	return errors.Join(errs...)
}
