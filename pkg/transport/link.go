package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/claudegel/zigbee-herdsman/pkg/discovery"
)

// AutoPath selects the first serial port that looks like a Z-Stack stick.
const AutoPath = "auto"

// Resolver finds a network attached coordinator by mDNS service name.
type Resolver interface {
	Resolve(ctx context.Context, service string) (*discovery.Service, error)
}

// LinkConfig describes how to reach the chip.
type LinkConfig struct {
	// Path is a serial device, "auto", "tcp://host:port" or
	// "mdns://<service>".
	Path string

	BaudRate        int
	ClearModemLines bool
	ConnectTimeout  time.Duration

	// Resolver resolves mdns:// paths. Defaults to a discovery.Browser.
	Resolver Resolver

	Logger *slog.Logger
}

// Link opens the byte stream described by a LinkConfig. Its Open method
// is a znp.OpenFunc.
type Link struct {
	cfg    LinkConfig
	logger *slog.Logger

	// openSerial and dialTCP are replaced in tests.
	openSerial func(SerialConfig) (io.ReadWriteCloser, error)
	listPorts  func() ([]PortInfo, error)
	dialTCP    func(ctx context.Context, address string, timeout time.Duration) (io.ReadWriteCloser, error)
}

// NewLink validates cfg and returns a Link.
func NewLink(cfg LinkConfig) (*Link, error) {
	if cfg.Path != AutoPath {
		if _, err := ParseAddress(cfg.Path); err != nil {
			return nil, err
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = discovery.NewBrowser(discovery.DefaultBrowserConfig())
	}
	return &Link{
		cfg:        cfg,
		logger:     logger.With("component", "transport"),
		openSerial: OpenSerial,
		listPorts:  Ports,
		dialTCP:    DialTCP,
	}, nil
}

// Open opens the link.
func (l *Link) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if l.cfg.Path == AutoPath {
		ports, err := l.listPorts()
		if err != nil {
			return nil, fmt.Errorf("list serial ports: %w", err)
		}
		port, err := FindPort(ports)
		if err != nil {
			return nil, err
		}
		name, _ := port.AdapterName()
		l.logger.Info("auto-detected serial port", "port", port.Name, "adapter", name)
		return l.serial(port.Name, l.cfg.BaudRate)
	}

	addr, err := ParseAddress(l.cfg.Path)
	if err != nil {
		return nil, err
	}
	switch addr.Scheme {
	case SchemeTCP:
		l.logger.Debug("connecting", "address", addr.Target)
		return l.dialTCP(ctx, addr.Target, l.cfg.ConnectTimeout)

	case SchemeMDNS:
		svc, err := l.cfg.Resolver.Resolve(ctx, addr.Target)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", addr, err)
		}
		if len(svc.Addresses) == 0 {
			return nil, fmt.Errorf("resolve %s: service %q has no address", addr, svc.Instance)
		}
		if svc.RadioType != "" && svc.RadioType != discovery.RadioTypeZNP {
			return nil, fmt.Errorf("resolve %s: service %q runs radio type %q", addr, svc.Instance, svc.RadioType)
		}
		target := net.JoinHostPort(svc.Addresses[0], strconv.Itoa(int(svc.Port)))
		l.logger.Info("resolved coordinator", "service", svc.Instance, "address", target)
		return l.dialTCP(ctx, target, l.cfg.ConnectTimeout)

	default:
		return l.serial(addr.Target, l.cfg.BaudRate)
	}
}

func (l *Link) serial(path string, baud int) (io.ReadWriteCloser, error) {
	return l.openSerial(SerialConfig{
		Path:            normalizePortName(path),
		BaudRate:        baud,
		ClearModemLines: l.cfg.ClearModemLines,
	})
}

// Name names the link in logs.
func (l *Link) Name() string {
	return l.cfg.Path
}
