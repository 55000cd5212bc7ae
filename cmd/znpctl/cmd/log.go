package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/claudegel/zigbee-herdsman/cmd/znpctl/logview"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "inspect protocol capture files",
}

var logViewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "print capture events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := filterOptions(cmd)
		if err != nil {
			return err
		}
		return logview.RunView(args[0], opts, cmd.OutOrStdout())
	},
}

var logFilterCmd = &cobra.Command{
	Use:   "filter <file>",
	Short: "copy matching events to a new capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := filterOptions(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			return fmt.Errorf("--output is required")
		}
		n, err := logview.RunFilter(args[0], output, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d events to %s\n", n, output)
		return nil
	},
}

var logStatsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "summarize a capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return logview.RunStats(args[0], cmd.OutOrStdout())
	},
}

var logExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "export a capture as jsonl or csv",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		w := cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		return logview.RunExport(args[0], format, w)
	},
}

func filterOptions(cmd *cobra.Command) (logview.Options, error) {
	f := cmd.Flags()
	var o logview.Options
	var err error
	get := func(name string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = f.GetString(name)
		return v
	}
	o.ConnID = get("conn")
	o.TimeStart = get("since")
	o.TimeEnd = get("until")
	o.Layer = get("layer")
	o.Direction = get("direction")
	o.Category = get("category")
	o.Subsystem = get("subsystem")
	o.Command = get("command")
	return o, err
}

func init() {
	for _, c := range []*cobra.Command{logViewCmd, logFilterCmd} {
		f := c.Flags()
		f.String("conn", "", "connection ID")
		f.String("since", "", "events at or after this RFC3339 time")
		f.String("until", "", "events before this RFC3339 time")
		f.String("layer", "", "transport, znp or adapter")
		f.String("direction", "", "in or out")
		f.String("category", "", "message, state or error")
		f.String("subsystem", "", "MT subsystem (SYS, AF, ZDO, ...)")
		f.String("command", "", "MT command name")
	}
	logFilterCmd.Flags().StringP("output", "o", "", "output capture file")
	logExportCmd.Flags().StringP("format", "f", "jsonl", "jsonl or csv")
	logExportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	logCmd.AddCommand(logViewCmd, logFilterCmd, logStatsCmd, logExportCmd)
	rootCmd.AddCommand(logCmd)
}
