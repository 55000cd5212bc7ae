// Package cmd implements the znpctl commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/claudegel/zigbee-herdsman/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:          "znpctl",
	Short:        "Z-Stack ZNP coordinator tool",
	Long:         `Form, resume, back up and inspect a Texas Instruments Z-Stack coordinator over serial, TCP or mDNS.`,
	SilenceUsage: true,
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagConfig      = "config"
	flagPort        = "port"
	flagBaudrate    = "baudrate"
	flagLogLevel    = "log-level"
	flagProtocolLog = "protocol-log"
)

func init() {
	addGlobalFlags(rootCmd)
}

func addGlobalFlags(c *cobra.Command) {
	pf := c.PersistentFlags()
	pf.StringP(flagConfig, "c", "", "configuration file (.yaml or .toml)")
	pf.StringP(flagPort, "p", "", "serial device, auto, tcp://host:port or mdns://service")
	pf.IntP(flagBaudrate, "b", 0, "serial baud rate")
	pf.StringP(flagLogLevel, "l", "", "log level (debug, info, warn, error)")
	pf.String(flagProtocolLog, "", "write a protocol capture to this file")
}

// loadConfig reads the configuration file, if any, and applies the
// command line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	pf := cmd.Flags()

	cfg := config.Default()
	path, err := pf.GetString(flagConfig)
	if err != nil {
		return cfg, err
	}
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if pf.Changed(flagPort) {
		cfg.Serial.Path, _ = pf.GetString(flagPort)
	}
	if pf.Changed(flagBaudrate) {
		cfg.Serial.BaudRate, _ = pf.GetInt(flagBaudrate)
	}
	if pf.Changed(flagLogLevel) {
		cfg.Log.Level, _ = pf.GetString(flagLogLevel)
	}
	if pf.Changed(flagProtocolLog) {
		cfg.Log.ProtocolFile, _ = pf.GetString(flagProtocolLog)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger creates the operational logger.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// setup loads the configuration and installs the default logger.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, err
	}
	level, _ := cfg.LogLevel()
	logger := newLogger(os.Stderr, level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
