// Package config loads the coordinator configuration from YAML or TOML
// files.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/claudegel/zigbee-herdsman/pkg/transport"
	"github.com/claudegel/zigbee-herdsman/pkg/zstack"
)

// Config is the complete coordinator configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial" toml:"serial"`
	Network   NetworkConfig   `yaml:"network" toml:"network"`
	Backup    BackupConfig    `yaml:"backup" toml:"backup"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	KeepAlive KeepAliveConfig `yaml:"keepalive" toml:"keepalive"`
}

// SerialConfig selects the link to the chip.
type SerialConfig struct {
	// Path is a serial device, "auto", "tcp://host:port" or "mdns://<service>".
	Path            string   `yaml:"path" toml:"path"`
	BaudRate        int      `yaml:"baud_rate" toml:"baud_rate"`
	ClearModemLines bool     `yaml:"clear_modem_lines" toml:"clear_modem_lines"`
	SkipBootloader  bool     `yaml:"skip_bootloader" toml:"skip_bootloader"`
	ConnectTimeout  Duration `yaml:"connect_timeout" toml:"connect_timeout"`
}

// NetworkConfig holds the network parameters. ExtendedPanID and NetworkKey
// are hex strings, optionally "0x" prefixed or separated by ':'.
type NetworkConfig struct {
	PanID                uint16  `yaml:"pan_id" toml:"pan_id"`
	ExtendedPanID        string  `yaml:"extended_pan_id" toml:"extended_pan_id"`
	Channels             []uint8 `yaml:"channels" toml:"channels"`
	NetworkKey           string  `yaml:"network_key" toml:"network_key"`
	NetworkKeyDistribute bool    `yaml:"network_key_distribute" toml:"network_key_distribute"`
}

// BackupConfig locates the coordinator backup file.
type BackupConfig struct {
	Path string `yaml:"path" toml:"path"`

	// Restore feeds the backup file to Start when it exists.
	Restore bool `yaml:"restore" toml:"restore"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`

	// ProtocolFile captures frames and state changes when set.
	ProtocolFile string `yaml:"protocol_file" toml:"protocol_file"`
}

// KeepAliveConfig configures link monitoring. A zero interval disables it.
type KeepAliveConfig struct {
	Interval  Duration `yaml:"interval" toml:"interval"`
	MaxMissed int      `yaml:"max_missed" toml:"max_missed"`
}

// Duration is a time.Duration written as "30s" in config files.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Path:     transport.AutoPath,
			BaudRate: transport.DefaultBaudRate,
		},
		Network: NetworkConfig{
			PanID:         0x1A62,
			ExtendedPanID: "dddddddddddddddd",
			Channels:      []uint8{11},
			NetworkKey:    "01030507090b0d0f00020406080a0c0d",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path on top of Default. The format follows the extension:
// .toml for TOML, anything else is YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Serial.Path == "" {
		errs = append(errs, errors.New("serial.path is required"))
	} else if c.Serial.Path != transport.AutoPath {
		if _, err := transport.ParseAddress(c.Serial.Path); err != nil {
			errs = append(errs, fmt.Errorf("serial.path: %w", err))
		}
	}
	if c.Serial.BaudRate < 0 {
		errs = append(errs, fmt.Errorf("serial.baud_rate: %d is negative", c.Serial.BaudRate))
	}
	if _, err := c.NetworkOptions(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Backup.Restore && c.Backup.Path == "" {
		errs = append(errs, errors.New("backup.restore needs backup.path"))
	}
	if c.KeepAlive.MaxMissed < 0 {
		errs = append(errs, fmt.Errorf("keepalive.max_missed: %d is negative", c.KeepAlive.MaxMissed))
	}
	return errors.Join(errs...)
}

// NetworkOptions converts the network section.
func (c Config) NetworkOptions() (zstack.NetworkOptions, error) {
	n := c.Network
	opts := zstack.NetworkOptions{
		PanID:                n.PanID,
		ChannelList:          append([]uint8(nil), n.Channels...),
		NetworkKeyDistribute: n.NetworkKeyDistribute,
	}
	if n.PanID == 0 || n.PanID >= 0xFFFF {
		return opts, fmt.Errorf("network.pan_id: 0x%04x is reserved", n.PanID)
	}
	if len(n.Channels) == 0 {
		return opts, errors.New("network.channels: at least one channel is required")
	}
	for _, ch := range n.Channels {
		if ch < 11 || ch > 26 {
			return opts, fmt.Errorf("network.channels: %d is outside 11-26", ch)
		}
	}
	if err := decodeHex("network.extended_pan_id", n.ExtendedPanID, opts.ExtendedPanID[:]); err != nil {
		return opts, err
	}
	if err := decodeHex("network.network_key", n.NetworkKey, opts.NetworkKey[:]); err != nil {
		return opts, err
	}
	return opts, nil
}

// LogLevel parses the log level.
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// KeepAliveOptions returns the keep-alive settings, or nil when disabled.
func (c Config) KeepAliveOptions() *transport.KeepAliveConfig {
	if c.KeepAlive.Interval.Duration <= 0 {
		return nil
	}
	return &transport.KeepAliveConfig{
		PingInterval:   c.KeepAlive.Interval.Duration,
		MaxMissedPings: c.KeepAlive.MaxMissed,
	}
}

// decodeHex decodes s into dst, which it must fill exactly.
func decodeHex(field, s string, dst []byte) error {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	s = strings.ReplaceAll(s, ":", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if len(b) != len(dst) {
		return fmt.Errorf("%s: want %d bytes, got %d", field, len(dst), len(b))
	}
	copy(dst, b)
	return nil
}
