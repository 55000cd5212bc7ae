package transport

import (
	"context"
	"sync"
	"time"
)

// Keep-alive constants.
const (
	// DefaultPingInterval is the default interval between pings.
	DefaultPingInterval = 60 * time.Second

	// DefaultPingTimeout bounds a single ping round trip.
	DefaultPingTimeout = 6 * time.Second

	// DefaultMaxMissedPings is the default number of consecutive failed
	// pings before the link is considered dead.
	DefaultMaxMissedPings = 3
)

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// PingInterval is the interval between pings.
	PingInterval time.Duration

	// PingTimeout bounds a single ping.
	PingTimeout time.Duration

	// MaxMissedPings is the number of consecutive failed pings before
	// the timeout callback runs.
	MaxMissedPings int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PingTimeout:    DefaultPingTimeout,
		MaxMissedPings: DefaultMaxMissedPings,
	}
}

// DetectionDelay is the longest time between link loss and the timeout
// callback.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPings) + c.PingTimeout
}

// PingFunc performs one round trip with the chip.
type PingFunc func(ctx context.Context) error

// KeepAlive pings the chip periodically and reports a dead link.
type KeepAlive struct {
	config KeepAliveConfig

	ping      PingFunc
	onTimeout func(err error)

	mu          sync.Mutex
	running     bool
	stopCh      chan struct{}
	missed      int
	lastPing    time.Time
	lastSuccess time.Time
	lastErr     error
}

// NewKeepAlive creates a keep-alive monitor. onTimeout runs once, with the
// last ping error, when MaxMissedPings consecutive pings failed.
func NewKeepAlive(config KeepAliveConfig, ping PingFunc, onTimeout func(err error)) *KeepAlive {
	if config.PingInterval == 0 {
		config.PingInterval = DefaultPingInterval
	}
	if config.PingTimeout == 0 {
		config.PingTimeout = DefaultPingTimeout
	}
	if config.MaxMissedPings == 0 {
		config.MaxMissedPings = DefaultMaxMissedPings
	}

	return &KeepAlive{
		config:    config,
		ping:      ping,
		onTimeout: onTimeout,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the monitoring loop.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	if ka.running {
		ka.mu.Unlock()
		return
	}
	ka.running = true
	ka.missed = 0
	ka.stopCh = make(chan struct{})
	stop := ka.stopCh
	ka.mu.Unlock()

	go ka.loop(ctx, stop)
}

// Stop stops the monitoring loop.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if !ka.running {
		return
	}
	ka.running = false
	close(ka.stopCh)
}

// IsRunning returns true if monitoring is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// KeepAliveStats contains keep-alive statistics.
type KeepAliveStats struct {
	LastPing    time.Time
	LastSuccess time.Time
	Missed      int
	LastErr     error
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return KeepAliveStats{
		LastPing:    ka.lastPing,
		LastSuccess: ka.lastSuccess,
		Missed:      ka.missed,
		LastErr:     ka.lastErr,
	}
}

func (ka *KeepAlive) loop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			dead := ka.tick(ctx)
			if dead == nil {
				continue
			}
			// A Stop, or a Stop and Start, during the last ping wins.
			ka.mu.Lock()
			current := ka.running && ka.stopCh == stop
			if current {
				ka.running = false
			}
			ka.mu.Unlock()
			if current && ka.onTimeout != nil {
				ka.onTimeout(dead)
			}
			return
		}
	}
}

// tick sends one ping and returns the last error once the link is dead.
func (ka *KeepAlive) tick(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, ka.config.PingTimeout)
	defer cancel()

	ka.mu.Lock()
	ka.lastPing = time.Now()
	ka.mu.Unlock()

	err := ka.ping(pingCtx)

	ka.mu.Lock()
	defer ka.mu.Unlock()
	if err == nil {
		ka.missed = 0
		ka.lastSuccess = time.Now()
		ka.lastErr = nil
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	ka.missed++
	ka.lastErr = err
	if ka.missed >= ka.config.MaxMissedPings {
		return err
	}
	return nil
}
