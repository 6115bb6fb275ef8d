package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pipeshell/pipeshell/core/logger"
)

var logsCmd = &cobra.Command{
	Use:     "logs",
	Aliases: []string{"log"},
	Short:   "Explore the job event logs.",
}

// reportCmd summarizes a JSON-lines event log.
var reportCmd = &cobra.Command{
	Use:   "report FILE.log",
	Short: "Summarize commands run, spawn failures and abnormal exits.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		report := logger.NewReport()
		if err := logger.ReadJSONLinesLog(fd, report.Update); err != nil {
			return err
		}
		return report.WriteTo(cmd.OutOrStdout())
	},
}

func init() {
	logsCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(logsCmd)
}
