package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "datacollector-agent",
		Short:         "Relay log records to the Azure Monitor HTTP Data Collector API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runAgent()
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "agent",
			Short: "Run the relay API and spool watcher",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				runAgent()
				return nil
			},
		},
		newSendCommand(),
	)

	return root
}
