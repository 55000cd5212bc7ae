package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"github.com/claudegel/zigbee-herdsman/pkg/config"
	"github.com/claudegel/zigbee-herdsman/pkg/log"
	"github.com/claudegel/zigbee-herdsman/pkg/persistence"
	"github.com/claudegel/zigbee-herdsman/pkg/transport"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
	"github.com/claudegel/zigbee-herdsman/pkg/zstack"
)

// startAttempts bounds how often start retries a failed startup.
const startAttempts = 3

// coordinator wires a link, a ZNP engine and an adapter from a Config.
type coordinator struct {
	cfg      config.Config
	logger   *slog.Logger
	link     *transport.Link
	adapter  *zstack.Adapter
	store    *persistence.FileStore
	protocol *log.FileLogger
}

func newCoordinator(cfg config.Config, logger *slog.Logger) (*coordinator, error) {
	network, err := cfg.NetworkOptions()
	if err != nil {
		return nil, err
	}

	link, err := transport.NewLink(transport.LinkConfig{
		Path:            cfg.Serial.Path,
		BaudRate:        cfg.Serial.BaudRate,
		ClearModemLines: cfg.Serial.ClearModemLines,
		ConnectTimeout:  cfg.Serial.ConnectTimeout.Duration,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	c := &coordinator{cfg: cfg, logger: logger, link: link}

	var protocol log.Logger
	if cfg.Log.ProtocolFile != "" {
		if c.protocol, err = log.NewFileLogger(cfg.Log.ProtocolFile); err != nil {
			return nil, fmt.Errorf("open protocol capture: %w", err)
		}
		protocol = c.protocol
	}

	z := znp.New(znp.Config{
		Open:           link.Open,
		Port:           link.Name(),
		SkipBootloader: cfg.Serial.SkipBootloader,
		Logger:         logger,
		ProtocolLogger: protocol,
	})

	opts := zstack.Options{
		Network:        network,
		KeepAlive:      cfg.KeepAliveOptions(),
		Logger:         logger,
		ProtocolLogger: protocol,
	}
	if cfg.Backup.Path != "" {
		c.store = persistence.NewFileStore(cfg.Backup.Path)
		if cfg.Backup.Restore {
			if opts.Backup, err = c.store.Load(); err != nil {
				c.close()
				return nil, fmt.Errorf("load backup: %w", err)
			}
		}
	}
	c.adapter = zstack.New(z, opts)
	return c, nil
}

// start brings the coordinator up, retrying transient failures. Unsupported
// firmware and backup mismatches are not retried.
func (c *coordinator) start(ctx context.Context) (zstack.StartResult, error) {
	var result zstack.StartResult
	err := retry.Do(func() error {
		r, err := c.adapter.Start(ctx)
		if err != nil {
			_ = c.adapter.Stop()
			return err
		}
		result = r
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(startAttempts),
		retry.Delay(2*time.Second),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("start failed, retrying", "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	if result == zstack.StartRestored || result == zstack.StartResetted {
		if err := c.saveBackup(ctx); err != nil && !errors.Is(err, zstack.ErrUnsupported) {
			c.logger.Warn("backup after start failed", "error", err)
		}
	}
	return result, nil
}

func retryable(err error) bool {
	var validation *zstack.RestoreValidationError
	return !errors.Is(err, zstack.ErrUnsupported) && !errors.As(err, &validation)
}

// saveBackup writes a backup to the configured store. Without a store it
// does nothing.
func (c *coordinator) saveBackup(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	backup, err := c.adapter.Backup(ctx)
	if err != nil {
		return err
	}
	if err := c.store.Save(backup); err != nil {
		return fmt.Errorf("save backup: %w", err)
	}
	c.logger.Info("backup written", "path", c.store.Path(), "items", len(backup.Names()))
	return nil
}

func (c *coordinator) close() {
	if c.adapter != nil {
		if err := c.adapter.Stop(); err != nil {
			c.logger.Debug("stop", "error", err)
		}
	}
	if c.protocol != nil {
		_ = c.protocol.Close()
	}
}

// backupFunc returns saveBackup, or nil when no backup path is configured.
func (c *coordinator) backupFunc() func(context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.saveBackup
}
