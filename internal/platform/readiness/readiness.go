// Package readiness blocks until a dependency accepts connections.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const DefaultInterval = time.Second

// Options configures Wait.
type Options struct {
	// Address is the host:port polled over TCP.
	Address string
	// Interval between attempts; DefaultInterval when zero.
	Interval time.Duration
	// Timeout bounds the whole wait; zero waits until ctx is done.
	Timeout time.Duration
	// PostgresURL, when set, must also answer a ping before Wait returns.
	PostgresURL string
}

// ErrTimeout is returned when the deadline passes before the target is reachable.
var ErrTimeout = errors.New("timed out waiting for dependency")

// Wait polls until the address accepts a TCP connection (and Postgres pings, if configured).
func Wait(ctx context.Context, opts Options, logger *zap.Logger) error {
	if opts.Address == "" {
		return errors.New("readiness: address is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		err := probe(ctx, opts, interval)
		if err == nil {
			logger.Info("Dependency is ready", zap.String("address", opts.Address), zap.Int("attempts", attempt))
			return nil
		}
		logger.Debug("Dependency not ready yet", zap.String("address", opts.Address), zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s after %d attempts: %v", ErrTimeout, opts.Address, attempt, err)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func probe(ctx context.Context, opts Options, interval time.Duration) error {
	if err := DialTCP(ctx, opts.Address, interval); err != nil {
		return err
	}
	if opts.PostgresURL != "" {
		return PingPostgres(ctx, opts.PostgresURL)
	}
	return nil
}

// DialTCP opens and closes one TCP connection to address.
func DialTCP(ctx context.Context, address string, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// PingPostgres connects with pgx and pings. A reachable port is not proof the server accepts queries.
func PingPostgres(ctx context.Context, url string) error {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer conn.Close(context.Background())
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}
