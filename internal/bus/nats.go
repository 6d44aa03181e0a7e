// ABOUTME: NATS-backed bus for multi-process fleets
// ABOUTME: Subjects map one-to-one onto NATS subjects

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS is a Bus over a NATS connection.
type NATS struct {
	nc     *nats.Conn
	owned  bool
	logger *slog.Logger
}

// NewNATS connects to url and returns a bus owning the connection.
func NewNATS(url, name string, logger *slog.Logger) (*NATS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bus", "backend", "nats")

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}

	logger.Info("connected to nats", "url", nc.ConnectedUrl())
	return &NATS{nc: nc, owned: true, logger: logger}, nil
}

// NewNATSFromConn wraps an existing connection. Close does not close it.
func NewNATSFromConn(nc *nats.Conn, logger *slog.Logger) *NATS {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATS{nc: nc, logger: logger.With("component", "bus", "backend", "nats")}
}

// Publish sends data on subject.
func (n *NATS) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.nc.IsClosed() {
		return ErrClosed
	}
	if err := n.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers h for messages on subject.
func (n *NATS) Subscribe(subject string, h Handler) (Subscription, error) {
	sub, err := n.nc.Subscribe(subject, func(msg *nats.Msg) {
		h(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	n.logger.Debug("subscribed", "subject", subject)
	return sub, nil
}

// Close drains the connection if the bus owns it.
func (n *NATS) Close() error {
	if !n.owned {
		return nil
	}
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
		return fmt.Errorf("draining nats connection: %w", err)
	}
	return nil
}
