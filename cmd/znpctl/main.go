// Command znpctl operates a Z-Stack ZNP coordinator.
//
// Usage:
//
//	znpctl [--config file] [--port path] <command> [args]
//
// Commands:
//
//	start     Bring the coordinator onto the configured network and exit
//	run       Start the coordinator and open an interactive shell
//	backup    Write a coordinator backup to a file
//	ports     List serial ports and detected Z-Stack adapters
//	discover  Browse mDNS for network-attached coordinators
//	bridge    Share a serial coordinator over TCP
//	log       Inspect protocol capture files
//
// Examples:
//
//	znpctl --port /dev/ttyACM0 start
//	znpctl --config /etc/znp.yaml run
//	znpctl --port mdns://slzb-06 backup coordinator.json
//	znpctl log view --layer znp capture.zlog
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/claudegel/zigbee-herdsman/cmd/znpctl/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
