package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/claudegel/zigbee-herdsman/pkg/discovery"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [service...]",
	Short: "browse mDNS for network coordinators",
	Long:  `Browse mDNS for network-attached Zigbee coordinators. Without arguments the known coordinator services are browsed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		iface, _ := cmd.Flags().GetString("interface")

		names := args
		if len(names) == 0 {
			names = discovery.KnownServices
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		browser := discovery.NewBrowser(discovery.BrowserConfig{BrowseTimeout: timeout, Interface: iface})
		defer browser.Stop()

		services, err := browser.Find(ctx, names...)
		if err != nil {
			return err
		}
		printServices(cmd.OutOrStdout(), services)
		return nil
	},
}

func printServices(out io.Writer, services []*discovery.Service) {
	if len(services) == 0 {
		fmt.Fprintln(out, "No coordinators found")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tSERVICE\tENDPOINT\tRADIO\tPATH")
	for _, s := range services {
		radio := s.RadioType
		if radio == "" {
			radio = "-"
		}
		endpoint, ok := s.Endpoint()
		if !ok {
			endpoint = s.Host
		}
		name := strings.TrimSuffix(strings.TrimPrefix(s.Service, "_"), "._tcp")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\tmdns://%s\n", s.Instance, s.Service, endpoint, radio, name)
	}
	_ = w.Flush()
}

func init() {
	discoverCmd.Flags().Duration("timeout", 5*time.Second, "how long to browse")
	discoverCmd.Flags().String("interface", "", "network interface to browse on")
	rootCmd.AddCommand(discoverCmd)
}
