package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/claudegel/zigbee-herdsman/pkg/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the coordinator and open an interactive shell",
	Long:  `Start the coordinator, print device events as they arrive and accept shell commands. The coordinator is restarted with backoff when the link is lost.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "znp> ",
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		defer rl.Close()

		// Log output goes through readline so it does not garble the prompt.
		level, _ := cfg.LogLevel()
		logger = newLogger(rl.Stderr(), level)

		c, err := newCoordinator(cfg, logger)
		if err != nil {
			return err
		}
		defer c.close()

		printer := newEventPrinter()
		c.adapter.AddObserver(printer)

		sup := supervisor.New(supervisor.Config{
			Start: func(ctx context.Context) error {
				_, err := c.start(ctx)
				return err
			},
			OnRestarting: func(attempt int, delay time.Duration) {
				fmt.Fprintf(rl.Stdout(), "Restarting coordinator in %s (attempt %d)\n", delay.Round(time.Millisecond), attempt)
			},
			Logger: logger,
		})
		defer sup.Close()
		c.adapter.AddObserver(sup)

		if err := sup.Start(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(rl.Stdout(), "Coordinator %s on %s\n", c.adapter.State(), c.link.Name())

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			printer.drain(rl.Stdout(), ctx.Done())
			return nil
		})

		g.Go(func() error {
			defer cancel()
			shell := NewShell(c.adapter, rl.Stdout(), c.backupFunc())
			return shell.Run(ctx, rl)
		})

		// Readline blocks on stdin; closing it releases the shell.
		go func() {
			<-ctx.Done()
			_ = rl.Close()
		}()

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
