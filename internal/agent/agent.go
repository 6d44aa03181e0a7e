// ABOUTME: Agent orchestrator: builds every component from config and runs them
// ABOUTME: Run blocks until the context is cancelled, then drains servers and closes resources

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"tailscale.com/tsnet"

	"github.com/2389/coven-bdi/internal/auth"
	"github.com/2389/coven-bdi/internal/bdi"
	"github.com/2389/coven-bdi/internal/bus"
	"github.com/2389/coven-bdi/internal/client"
	"github.com/2389/coven-bdi/internal/config"
	"github.com/2389/coven-bdi/internal/executor"
	"github.com/2389/coven-bdi/internal/mirror"
	"github.com/2389/coven-bdi/internal/multiagent"
	"github.com/2389/coven-bdi/internal/planlib"
	"github.com/2389/coven-bdi/internal/planner"
	"github.com/2389/coven-bdi/internal/scheduler"
)

const (
	shutdownTimeout = 5 * time.Second
	readyPoll       = 100 * time.Millisecond
)

// Option customizes an Agent.
type Option func(*options)

type options struct {
	bus         bus.Bus
	plannerConn grpc.ClientConnInterface
	grpcLn      net.Listener
	httpLn      net.Listener
	actions     []executor.Spec
}

// WithBus shares an existing bus. The agent does not close it.
func WithBus(b bus.Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithPlannerConn uses cc for the planner instead of dialing planner.addr.
func WithPlannerConn(cc grpc.ClientConnInterface) Option {
	return func(o *options) { o.plannerConn = cc }
}

// WithListeners serves on the given listeners instead of server addresses.
func WithListeners(grpcLn, httpLn net.Listener) Option {
	return func(o *options) {
		o.grpcLn = grpcLn
		o.httpLn = httpLn
	}
}

// WithActions registers additional executor actions.
func WithActions(specs ...executor.Spec) Option {
	return func(o *options) { o.actions = append(o.actions, specs...) }
}

// Agent is one running BDI agent.
type Agent struct {
	cfg    *config.Config
	opts   options
	logger *slog.Logger

	bus      bus.Bus
	ownsBus  bool
	channels *bus.Channels
	store    *bus.Store

	mirror    *mirror.Mirror
	handler   *multiagent.Handler
	server    *multiagent.Server
	scheduler *scheduler.Scheduler
	executor  *executor.Executor
	planner   *planner.Client
	dev       *devPlanner
	library   *planlib.SQLiteLibrary
	writer    *planlib.Writer
	peers     *client.Client

	httpServer    *http.Server
	tsnetServer   *tsnet.Server
	subs          []bus.Subscription
	started       time.Time
	writerStarted bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	closeMu sync.Once
}

// New builds an agent from cfg. Nothing runs until Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		cfg:    cfg,
		logger: logger.With("component", "agent", "agent_id", cfg.Agent.ID),
		mirror: mirror.New(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&a.opts)
	}

	if err := a.initBus(logger); err != nil {
		return nil, err
	}
	a.channels = bus.NewChannels(a.bus, cfg.Agent.ID, logger)
	if cfg.Store.Embedded {
		a.store = bus.NewStore(a.channels, cfg.Store.InitialBeliefs, cfg.Store.InitialDesires, logger)
	}

	a.peers = client.New(client.Config{
		Group: cfg.Agent.Group,
		Token: cfg.Auth.Token,
		Peers: cfg.Peers,
		Bus:   a.bus,
	}, logger)

	if err := a.initPlanner(logger); err != nil {
		a.closeComponents()
		return nil, err
	}
	a.initLibrary(logger)

	a.executor = executor.New(executor.Config{AgentID: cfg.Agent.ID}, executor.Deps{
		Intents:  a.channels,
		Peers:    a.peers,
		Reporter: a.planner,
		Status:   a.channels,
		Logger:   logger,
	})
	for _, spec := range a.opts.actions {
		if err := a.executor.Register(spec); err != nil {
			a.closeComponents()
			return nil, fmt.Errorf("registering action %q: %w", spec.Name, err)
		}
	}

	deps := scheduler.Deps{
		Searcher:  a.planner,
		Executor:  a.executor,
		Publisher: a.channels,
		Logger:    logger,
	}
	if a.library != nil {
		deps.Library = a.library
		deps.Writer = a.writer
	}
	a.scheduler = scheduler.New(scheduler.Config{
		AgentID:              cfg.Agent.ID,
		Mode:                 scheduler.Mode(cfg.Scheduler.Mode),
		Policy:               scheduler.Policy(cfg.Scheduler.ReschedulePolicy),
		CompPlanTries:        cfg.Scheduler.CompPlanTries,
		ExecPlanTries:        cfg.Scheduler.ExecPlanTries,
		SearchTimeout:        cfg.Planner.SearchTimeout,
		RescheduleInterval:   cfg.Scheduler.RescheduleInterval,
		AbortSurpassDeadline: cfg.Scheduler.AbortSurpassDeadline,
	}, deps)
	a.executor.SetFeedback(a.scheduler.UpdatePlanExecution)

	a.handler = multiagent.NewHandler(multiagent.NewPolicy(cfg.Requests), a.mirror, a.channels, multiagent.HandlerConfig{
		MaxWaitUpdates: cfg.Requests.MaxWaitUpdates,
		WaitTimeout:    cfg.Requests.WaitTimeout,
	}, logger)

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	}
	a.server = multiagent.NewServer(a.handler, multiagent.ServerConfig{
		Verifier:       verifier,
		RateLimitRPS:   cfg.Requests.RateLimitRPS,
		RateLimitBurst: cfg.Requests.RateLimitBurst,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           a.routes(verifier),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *Agent) initBus(logger *slog.Logger) error {
	if a.opts.bus != nil {
		a.bus = a.opts.bus
		return nil
	}
	switch a.cfg.Bus.Backend {
	case config.BusNATS:
		n, err := bus.NewNATS(a.cfg.Bus.NATSURL, "coven-bdi-"+a.cfg.Agent.ID, logger)
		if err != nil {
			return fmt.Errorf("connecting bus: %w", err)
		}
		a.bus = n
	default:
		a.bus = bus.NewMemory(logger)
	}
	a.ownsBus = true
	return nil
}

func (a *Agent) initPlanner(logger *slog.Logger) error {
	switch {
	case a.opts.plannerConn != nil:
		a.planner = planner.NewClient(a.opts.plannerConn, a.cfg.Agent.ID, logger)
	case a.cfg.Planner.Addr != "":
		c, err := planner.Dial(a.cfg.Planner.Addr, a.cfg.Agent.ID, logger)
		if err != nil {
			return err
		}
		a.planner = c
	default:
		dev, err := startDevPlanner(logger)
		if err != nil {
			return err
		}
		a.dev = dev
		a.planner = planner.NewClient(dev.conn, a.cfg.Agent.ID, logger)
		a.logger.Warn("planner.addr not set - using in-process development planner")
	}
	return nil
}

// initLibrary opens the plan library. Failure disables caching but not
// the agent.
func (a *Agent) initLibrary(logger *slog.Logger) {
	if !a.cfg.PlanLibrary.Enabled {
		return
	}
	lib, err := planlib.Open(a.cfg.PlanLibrary.Driver, a.cfg.PlanLibrary.Path)
	if err != nil {
		a.logger.Error("plan library unavailable, running uncached", "path", a.cfg.PlanLibrary.Path, "error", err)
		return
	}
	a.library = lib
	a.writer = planlib.NewWriter(lib, 0, logger)
}

// subscribe routes this agent's snapshots through the handler into the
// scheduler.
func (a *Agent) subscribe() error {
	beliefs, err := a.channels.OnBeliefSet(func(snap bdi.BeliefSetSnapshot) {
		a.scheduler.OnBeliefSet(a.handler.OnBeliefSet(snap))
	})
	if err != nil {
		return fmt.Errorf("subscribing to belief set: %w", err)
	}
	desires, err := a.channels.OnDesireSet(func(snap bdi.DesireSetSnapshot) {
		a.scheduler.OnDesireSet(a.handler.OnDesireSet(snap))
	})
	if err != nil {
		_ = beliefs.Unsubscribe()
		return fmt.Errorf("subscribing to desire set: %w", err)
	}
	a.subs = append(a.subs, beliefs, desires)
	return nil
}

// Run starts every component and blocks until ctx is cancelled or a
// server fails. It returns nil on a clean shutdown.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		cancel()
		return errors.New("agent already running")
	}
	a.cancel = cancel
	a.mu.Unlock()
	defer close(a.done)
	defer a.closeComponents()
	defer cancel()

	grpcLn, httpLn, err := a.setupListeners(ctx)
	if err != nil {
		return err
	}
	if err := a.subscribe(); err != nil {
		_ = grpcLn.Close()
		_ = httpLn.Close()
		return err
	}
	if a.store != nil {
		if err := a.store.Start(ctx); err != nil {
			_ = grpcLn.Close()
			_ = httpLn.Close()
			return fmt.Errorf("starting store: %w", err)
		}
	}
	a.started = time.Now()

	g, gctx := errgroup.WithContext(ctx)
	if a.writer != nil {
		a.writerStarted = true
		g.Go(func() error {
			a.writer.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		a.scheduler.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := a.server.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := a.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.watchReadiness(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.stopServers()
		return nil
	})

	a.logger.Info("agent running",
		"group", a.cfg.Agent.Group,
		"bus", a.cfg.Bus.Backend,
		"embedded_store", a.store != nil,
		"plan_library", a.library != nil)

	err = g.Wait()
	if err != nil {
		a.logger.Error("agent stopped with error", "error", err)
		return err
	}
	a.logger.Info("agent stopped")
	return nil
}

// watchReadiness flips gRPC health to SERVING once both sets are mirrored.
func (a *Agent) watchReadiness(ctx context.Context) {
	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()
	for {
		if a.mirror.Synced() {
			a.server.SetServing(true)
			a.logger.Info("agent ready", "beliefs", a.mirror.Beliefs().Len(), "desires", a.mirror.Desires().Len())
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// stopServers drains HTTP and gRPC, forcing gRPC closed after the timeout.
func (a *Agent) stopServers() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.server.SetServing(false)
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Warn("HTTP shutdown", "error", err)
	}

	stopped := make(chan struct{})
	go func() {
		a.server.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		a.server.GRPC().Stop()
	}
}

// Shutdown stops a running agent and waits for Run to return, or closes
// the components of an agent that never ran.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel == nil {
		a.closeComponents()
		return nil
	}

	cancel()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func (a *Agent) closeComponents() {
	a.closeMu.Do(func() {
		var errs []error
		for _, sub := range a.subs {
			errs = appendCloseError(errs, "unsubscribe", sub.Unsubscribe())
		}
		if a.store != nil {
			a.store.Stop()
		}
		if a.executor != nil {
			a.executor.Stop()
		}
		if a.planner != nil {
			errs = appendCloseError(errs, "planner close", a.planner.Close())
		}
		if a.dev != nil {
			errs = appendCloseError(errs, "development planner", a.dev.Close())
		}
		if a.writerStarted {
			a.writer.Stop()
		}
		if a.library != nil {
			errs = appendCloseError(errs, "plan library close", a.library.Close())
		}
		if a.peers != nil {
			errs = appendCloseError(errs, "peers close", a.peers.Close())
		}
		if a.tsnetServer != nil {
			errs = appendCloseError(errs, "tailscale shutdown", a.tsnetServer.Close())
		}
		if a.ownsBus && a.bus != nil {
			errs = appendCloseError(errs, "bus close", a.bus.Close())
		}
		if len(errs) > 0 {
			a.logger.Warn("shutdown errors", "errors", errors.Join(errs...))
		}
	})
}
