package discovery

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// Domain is the mDNS domain.
	Domain = "local"

	// ServiceBridge is the service name a znpctl serial bridge advertises.
	ServiceBridge = "znp_bridge"

	// DefaultBridgePort is the default TCP port of a serial bridge.
	DefaultBridgePort = 6638

	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second
)

// KnownServices are the service names used by network attached Zigbee
// coordinators.
var KnownServices = []string{
	ServiceBridge,
	"zig_star_gw",
	"slzb-06",
	"slzb-07",
	"uzg-01",
	"tubeszb",
	"xzg",
}

// TXT record keys.
const (
	TXTKeyRadioType = "radio_type"
	TXTKeyBaudRate  = "baud_rate"
	TXTKeySerial    = "serial_number"
	TXTKeyFirmware  = "fw"
)

// RadioTypeZNP is the radio_type value of Z-Stack coordinators.
const RadioTypeZNP = "znp"

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Discovery errors.
var (
	ErrInvalidServiceName  = errors.New("invalid service name")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
)

// Service is a network attached coordinator found by mDNS.
type Service struct {
	Instance  string
	Service   string
	Host      string
	Port      uint16
	Addresses []string

	// RadioType is the radio_type TXT record; empty when absent.
	RadioType string
	BaudRate  int
	Serial    string
	Firmware  string
}

// Endpoint returns "host:port" for the first address of s.
func (s *Service) Endpoint() (string, bool) {
	if len(s.Addresses) == 0 {
		return "", false
	}
	addr := s.Addresses[0]
	if strings.Contains(addr, ":") {
		addr = "[" + addr + "]"
	}
	return fmt.Sprintf("%s:%d", addr, s.Port), true
}

// ServiceType maps a service name such as "slzb-06" or "_slzb-06._tcp" to
// its DNS-SD type.
func ServiceType(name string) (string, error) {
	if strings.HasPrefix(name, "_") && strings.HasSuffix(name, "._tcp") {
		return name, nil
	}
	if name == "" || strings.ContainsAny(name, ". ") {
		return "", fmt.Errorf("%w: %q", ErrInvalidServiceName, name)
	}
	return "_" + strings.TrimPrefix(name, "_") + "._tcp", nil
}
