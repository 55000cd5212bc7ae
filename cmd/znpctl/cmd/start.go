package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "bring the coordinator onto the configured network",
	Long:  `Resume, form or restore the configured network, print the coordinator details and exit.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		c, err := newCoordinator(cfg, logger)
		if err != nil {
			return err
		}
		defer c.close()

		ctx := cmd.Context()
		result, err := c.start(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Result:  %s\n", result)
		if v, err := c.adapter.GetCoordinatorVersion(); err == nil {
			fmt.Fprintf(out, "Version: %s revision %d\n", v.Type, v.Meta.Revision)
		}
		shell := NewShell(c.adapter, out, nil)
		if err := shell.Exec(ctx, "params"); err != nil {
			return err
		}
		return shell.Exec(ctx, "coordinator")
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [file]",
	Short: "write a coordinator backup",
	Long:  `Start the coordinator and write its network state to file, or to the configured backup path.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			cfg.Backup.Path = args[0]
			cfg.Backup.Restore = false
		}
		if cfg.Backup.Path == "" {
			return errors.New("no backup file given and backup.path not configured")
		}

		c, err := newCoordinator(cfg, logger)
		if err != nil {
			return err
		}
		defer c.close()

		ctx := cmd.Context()
		if _, err := c.start(ctx); err != nil {
			return err
		}
		if err := c.saveBackup(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", cfg.Backup.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd, backupCmd)
}
