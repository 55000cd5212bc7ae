package transport

import (
	"fmt"
	"net"
	"strings"
)

// Scheme selects how a link is opened.
type Scheme int

const (
	SchemeSerial Scheme = iota
	SchemeTCP
	SchemeMDNS
)

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeSerial:
		return "serial"
	case SchemeTCP:
		return "tcp"
	case SchemeMDNS:
		return "mdns"
	default:
		return "unknown"
	}
}

// Address is a parsed link path.
type Address struct {
	Scheme Scheme

	// Target is the device path, the host:port or the mDNS service name.
	Target string
}

// ParseAddress parses a link path: "tcp://host:port", "mdns://<service>"
// or a serial device path.
func ParseAddress(path string) (Address, error) {
	switch {
	case path == "":
		return Address{}, fmt.Errorf("empty path")

	case strings.HasPrefix(path, "tcp://"):
		target := strings.TrimPrefix(path, "tcp://")
		if _, _, err := net.SplitHostPort(target); err != nil {
			return Address{}, fmt.Errorf("invalid tcp path %q: %w", path, err)
		}
		return Address{Scheme: SchemeTCP, Target: target}, nil

	case strings.HasPrefix(path, "mdns://"):
		target := strings.TrimPrefix(path, "mdns://")
		if target == "" {
			return Address{}, fmt.Errorf("invalid mdns path %q: missing service", path)
		}
		return Address{Scheme: SchemeMDNS, Target: target}, nil

	case strings.Contains(path, "://"):
		return Address{}, fmt.Errorf("unsupported path %q", path)

	default:
		return Address{Scheme: SchemeSerial, Target: path}, nil
	}
}

// String formats the address back into a path.
func (a Address) String() string {
	switch a.Scheme {
	case SchemeTCP:
		return "tcp://" + a.Target
	case SchemeMDNS:
		return "mdns://" + a.Target
	default:
		return a.Target
	}
}
