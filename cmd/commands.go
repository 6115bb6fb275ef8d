package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pipeshell/pipeshell/core"
)

// commandsCmd prints the command registry built from the search path.
var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the executables on the configured search path.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, err := core.NewContextFromConfig(cfg)
		if err != nil {
			return err
		}

		proc := core.NewCommandProcessor(ctx, nil, nil)
		defer proc.Close()

		return renderCommands(cmd.OutOrStdout(), proc)
	},
}

func renderCommands(w io.Writer, proc *core.CommandProcessor) error {
	tw := tabwriter.NewWriter(w, 8, 8, 4, ' ', 0)
	for _, name := range proc.Commands() {
		path, err := proc.Resolve(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, path)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(commandsCmd)
}
