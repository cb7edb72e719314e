package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/troupe/internal/cli"
	"github.com/aretw0/troupe/internal/presentation/tui"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one role-play turn",
	Long: `Runs one turn and prints the composed reply.

The turn input is either a single user message (--message) or a YAML/JSON
list of {role, content} messages (--input, "-" for stdin). With --session
the world state is loaded from and saved to the configured session store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := cli.RunOptions{}
		opts.Message, _ = cmd.Flags().GetString("message")
		opts.Input, _ = cmd.Flags().GetString("input")
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Plain, _ = cmd.Flags().GetBool("plain")
		opts.Progress, _ = cmd.Flags().GetBool("progress")
		if !tui.IsTerminal(os.Stdout) {
			opts.Plain = true
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stack, err := cli.CreateEngine(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		if opts.Progress && !opts.JSON && tui.IsTerminal(os.Stderr) {
			tui.PrintBanner(os.Stderr)
		}
		return cli.Run(ctx, stack, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("message", "m", "", "A single user message")
	runCmd.Flags().StringP("input", "i", "", `YAML/JSON message list file, or "-" for stdin`)
	runCmd.Flags().StringP("session", "s", "", "Session ID; keeps the world state between runs")
	runCmd.Flags().Bool("json", false, "Print the final output and every stage event as JSON")
	runCmd.Flags().Bool("plain", false, "Print the reply without markdown rendering")
	runCmd.Flags().Bool("progress", false, "Print stage progress to stderr")
}
