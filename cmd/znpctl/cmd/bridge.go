package cmd

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/claudegel/zigbee-herdsman/pkg/discovery"
	"github.com/claudegel/zigbee-herdsman/pkg/transport"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "share a serial coordinator over TCP",
	Long:  `Serve the configured serial port to one TCP client at a time and advertise it with mDNS as _znp_bridge._tcp.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		listen, _ := cmd.Flags().GetString("listen")
		instance, _ := cmd.Flags().GetString("name")
		noMDNS, _ := cmd.Flags().GetBool("no-mdns")

		link, err := transport.NewLink(transport.LinkConfig{
			Path:            cfg.Serial.Path,
			BaudRate:        cfg.Serial.BaudRate,
			ClearModemLines: cfg.Serial.ClearModemLines,
			Logger:          logger,
		})
		if err != nil {
			return err
		}

		bridge, err := transport.NewBridge(transport.BridgeConfig{
			Address: listen,
			Open:    link.Open,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := bridge.Start(ctx); err != nil {
			return err
		}
		defer bridge.Stop()

		if !noMDNS {
			if instance == "" {
				instance = defaultBridgeName(link.Name())
			}
			port := discovery.DefaultBridgePort
			if addr, ok := bridge.Addr().(*net.TCPAddr); ok {
				port = addr.Port
			}
			adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{})
			if err := adv.Advertise(discovery.BridgeInfo{
				Instance: instance,
				Port:     port,
				BaudRate: cfg.Serial.BaudRate,
			}); err != nil {
				return fmt.Errorf("advertise bridge: %w", err)
			}
			defer adv.Stop()
			logger.Info("bridge advertised", "instance", instance, "port", port)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", link.Name(), bridge.Addr())
		<-ctx.Done()
		return nil
	},
}

// defaultBridgeName names the bridge after the host and serial device.
func defaultBridgeName(port string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "znp"
	}
	return fmt.Sprintf("%s %s", host, filepath.Base(port))
}

func init() {
	f := bridgeCmd.Flags()
	f.String("listen", fmt.Sprintf(":%d", discovery.DefaultBridgePort), "TCP listen address")
	f.String("name", "", "mDNS instance name (default: host and port)")
	f.Bool("no-mdns", false, "do not advertise the bridge")
	rootCmd.AddCommand(bridgeCmd)
}
