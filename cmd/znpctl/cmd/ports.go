package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/claudegel/zigbee-herdsman/pkg/transport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "list serial ports",
	Long:  `List serial ports and mark the ones that look like Z-Stack adapters.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := transport.Ports()
		if err != nil {
			return err
		}
		printPorts(cmd.OutOrStdout(), ports)
		return nil
	},
}

func printPorts(out io.Writer, ports []transport.PortInfo) {
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tVID:PID\tSERIAL\tADAPTER")
	for _, p := range ports {
		id := "-"
		if p.IsUSB {
			id = p.VID + ":" + p.PID
		}
		name, ok := p.AdapterName()
		if !ok {
			name = "-"
		}
		serial := p.SerialNumber
		if serial == "" {
			serial = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, id, serial, name)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
