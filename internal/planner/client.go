// ABOUTME: Plan search client over the bdi.Planner gRPC service
// ABOUTME: Each search streams on its own goroutine and reports exactly one terminal result

package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/2389/coven-bdi/internal/bdi"
	"github.com/2389/coven-bdi/internal/wire"
)

const stopTimeout = 2 * time.Second

// ErrClosed is reported as the failure reason of searches started after Close.
var ErrClosed = errors.New("planner client closed")

// Client runs plan searches against a remote planner.
type Client struct {
	rpc     *wire.PlannerClient
	conn    *grpc.ClientConn // nil when the caller owns the connection
	agentID string
	logger  *slog.Logger

	mu       sync.Mutex
	searches map[string]context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

// Dial connects to the planner at addr.
func Dial(addr, agentID string, logger *slog.Logger) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                15 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to planner %s: %w", addr, err)
	}
	c := NewClient(conn, agentID, logger)
	c.conn = conn
	return c, nil
}

// NewClient wraps an existing connection. Close leaves cc open.
func NewClient(cc grpc.ClientConnInterface, agentID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rpc:      wire.NewPlannerClient(cc),
		agentID:  agentID,
		logger:   logger.With("component", "planner_client"),
		searches: make(map[string]context.CancelFunc),
	}
}

// Search starts req and returns immediately. deliver receives every result
// from a background goroutine. A stream that breaks before its terminal
// result yields a synthesized failure; a cancelled search yields nothing.
func (c *Client) Search(req bdi.SearchRequest, deliver func(bdi.SearchResult)) {
	if req.AgentID == "" {
		req.AgentID = c.agentID
	}
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		go deliver(failure(req.SearchID, ErrClosed))
		return
	}
	c.searches[req.SearchID] = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(ctx, req, deliver)
}

func (c *Client) run(ctx context.Context, req bdi.SearchRequest, deliver func(bdi.SearchResult)) {
	defer c.wg.Done()
	defer c.forget(req.SearchID)

	logger := c.logger.With("search_id", req.SearchID, "desire", req.Desire.Name)

	stream, err := c.rpc.Search(ctx, &req)
	if err != nil {
		c.fail(ctx, logger, req.SearchID, deliver, err)
		return
	}

	updates := 0
	for {
		res, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("planner closed the stream without a terminal result")
			}
			c.fail(ctx, logger, req.SearchID, deliver, err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		if res.SearchID == "" {
			res.SearchID = req.SearchID
		}
		updates++
		deliver(*res)
		if res.Terminal {
			logger.Debug("search finished", "success", res.Success, "updates", updates)
			return
		}
	}
}

func (c *Client) fail(ctx context.Context, logger *slog.Logger, searchID string, deliver func(bdi.SearchResult), err error) {
	if ctx.Err() != nil {
		logger.Debug("search cancelled")
		return
	}
	logger.Warn("search stream failed", "error", err)
	deliver(failure(searchID, err))
}

func failure(searchID string, err error) bdi.SearchResult {
	return bdi.SearchResult{SearchID: searchID, Terminal: true, Success: false, Reason: err.Error()}
}

func (c *Client) forget(searchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.searches[searchID]; ok {
		cancel()
		delete(c.searches, searchID)
	}
}

// Cancel stops a running search. The planner is told to stop on a best
// effort basis and the call never blocks.
func (c *Client) Cancel(searchID string) {
	c.mu.Lock()
	cancel, ok := c.searches[searchID]
	delete(c.searches, searchID)
	closed := c.closed
	c.mu.Unlock()

	if !ok {
		return
	}
	cancel()
	if closed {
		return
	}

	go func() {
		ctx, done := context.WithTimeout(context.Background(), stopTimeout)
		defer done()
		if _, err := c.rpc.Stop(ctx, &wire.StopRequest{AgentID: c.agentID, SearchID: searchID}); err != nil {
			c.logger.Debug("planner stop failed", "search_id", searchID, "error", err)
		}
	}()
}

// ReportExecution forwards the executing action to the planner.
func (c *Client) ReportExecution(ctx context.Context, st bdi.ExecutionStatus) error {
	if st.AgentID == "" {
		st.AgentID = c.agentID
	}
	if _, err := c.rpc.ReportExecution(ctx, &st); err != nil {
		return fmt.Errorf("reporting execution status: %w", err)
	}
	return nil
}

// Active returns the number of running searches.
func (c *Client) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.searches)
}

// Close cancels every running search and waits for their goroutines.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, cancel := range c.searches {
		cancel()
		delete(c.searches, id)
	}
	c.mu.Unlock()

	c.wg.Wait()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
