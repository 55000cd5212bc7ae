package transport

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is the Z-Stack UART default.
const DefaultBaudRate = 115200

// SerialConfig configures a serial link.
type SerialConfig struct {
	Path     string
	BaudRate int

	// ClearModemLines drops DTR and RTS after opening. Some CC2652 boards
	// hold the chip in reset or bootloader while either is asserted.
	ClearModemLines bool
}

// OpenSerial opens a serial port in 8N1 mode.
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(cfg.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %q: %w", cfg.Path, err)
	}
	if cfg.ClearModemLines {
		if err := p.SetDTR(false); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("clear DTR on %q: %w", cfg.Path, err)
		}
		if err := p.SetRTS(false); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("clear RTS on %q: %w", cfg.Path, err)
		}
	}
	return p, nil
}

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Ports lists the serial ports of the host.
func Ports() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	out := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		out = append(out, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return out, nil
}

// knownAdapters are USB bridges used on common Z-Stack sticks, keyed by
// lower case "vid:pid".
var knownAdapters = map[string]string{
	"0451:16a8": "CC2531",
	"0451:bef3": "CC1352P/CC2652R LaunchPad",
	"1a86:7523": "CH340 (zzh, Sonoff ZBDongle-P clones)",
	"10c4:ea60": "CP210x (Sonoff ZBDongle-P, Slaesh)",
	"1a86:55d4": "CH9102 (Sonoff ZBDongle-P)",
}

// AdapterName returns a guess of the Z-Stack stick behind a USB port.
func (p PortInfo) AdapterName() (string, bool) {
	if !p.IsUSB {
		return "", false
	}
	name, ok := knownAdapters[strings.ToLower(p.VID+":"+p.PID)]
	return name, ok
}

// FindPort returns the first port that looks like a Z-Stack stick.
func FindPort(ports []PortInfo) (PortInfo, error) {
	for _, p := range ports {
		if _, ok := p.AdapterName(); ok {
			return p, nil
		}
	}
	return PortInfo{}, fmt.Errorf("no Z-Stack adapter found among %d serial ports", len(ports))
}

// normalizePortName matches the enumerator's spelling of port names.
func normalizePortName(name string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(name)
	}
	return name
}
