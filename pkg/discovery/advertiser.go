package discovery

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one interface; empty means all.
	Interface string

	// TTL of the published records; zero uses the zeroconf default.
	TTL time.Duration
}

// BridgeInfo describes a serial bridge to advertise.
type BridgeInfo struct {
	Instance string
	Port     int
	BaudRate int
	Serial   string
	Firmware string
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (*zeroconf.Server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (*zeroconf.Server, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
}

// Advertiser publishes a serial bridge with mDNS.
type Advertiser struct {
	config   AdvertiserConfig
	register registerFunc

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an Advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	return &Advertiser{config: config, register: zeroconfRegister}
}

// Advertise publishes info as a ServiceBridge instance, replacing any
// previous registration.
func (a *Advertiser) Advertise(info BridgeInfo) error {
	if err := ValidateInstanceName(info.Instance); err != nil {
		return err
	}
	serviceType, err := ServiceType(ServiceBridge)
	if err != nil {
		return err
	}
	port := info.Port
	if port == 0 {
		port = DefaultBridgePort
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	txt := TXTRecordsToStrings(EncodeBridgeTXT(info.BaudRate, info.Serial, info.Firmware))
	server, err := a.register(info.Instance, serviceType, Domain, port, txt, a.interfaces(), opts...)
	if err != nil {
		return fmt.Errorf("failed to register bridge service: %w", err)
	}
	a.server = server
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// interfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *Advertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}
