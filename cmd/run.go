package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pipeshell/pipeshell/core"
	"github.com/pipeshell/pipeshell/core/filter"
	"github.com/pipeshell/pipeshell/core/logger"
)

var (
	colorBoldRed = color.New(color.FgRed, color.Bold)

	dryRun    bool
	separator string
)

// runCmd composes a pipeline out of the argument tokens and drives it.
var runCmd = &cobra.Command{
	Use:   "run -- COMMAND [ARG...] [\"|\" COMMAND...] [\"<\" FILE] [\">\" FILE]",
	Short: "Compose and drive a pipeline of external commands.",
	Long: `Splits the arguments on the operators | < > >> and + only, builds the
matching filter graph, and drives it. No shell language is interpreted; use
+ for sequential concatenation of whole pipelines.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		tokens, err := tokenize(args)
		if err != nil {
			return err
		}
		pl, err := parseTokens(tokens)
		if err != nil {
			return err
		}

		if dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), pl.String())
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, err := core.NewContextFromConfig(cfg)
		if err != nil {
			return err
		}

		sep := separator
		if sep == "" {
			sep = cfg.RecordSeparator
		}

		lg := logger.NewNopRecorder()
		if cfg.LogPath != "" {
			fd, err := os.OpenFile(cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return err
			}
			defer fd.Close()
			lg = logger.NewJSONLinesRecorder(fd)
		}
		session := lg.NewSession()
		session.Debug = cfg.Debug

		proc := core.NewCommandProcessor(ctx, nil, session)
		proc.Separator = sep
		proc.Stderr = cmd.ErrOrStderr()
		defer func() {
			// Abort anything still running before deregistering so a
			// failed drive never leaves orphaned jobs.
			for _, job := range proc.Controller().ActiveJobs() {
				proc.Controller().Terminate(job)
			}
			proc.WaitAll()
			proc.Close()
		}()

		root, err := pl.build(proc)
		if err != nil {
			return err
		}

		if pl.out != "" {
			err = proc.RedirectOut(root, pl.out, pl.appendOut)
		} else {
			err = drainTo(cmd.OutOrStdout(), root, proc.Separator)
		}
		if err != nil {
			return err
		}

		return reportResults(cmd.ErrOrStderr(), proc)
	},
}

// drainTo drives f, writing each produced record to w and restoring the
// separator after records that carried one in the source.
func drainTo(w io.Writer, f filter.Filter, sep string) error {
	seq, err := f.Produce(sep)
	if err != nil {
		return err
	}
	defer seq.Close()

	for {
		rec, err := seq.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if filter.Terminated(seq) {
			rec += sep
		}
		if _, err := io.WriteString(w, rec); err != nil {
			return err
		}
	}
}

// reportResults waits for every job and summarizes failures.
func reportResults(w io.Writer, proc *core.CommandProcessor) error {
	results := proc.WaitAll()

	ids := make([]int, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	failures := 0
	for _, id := range ids {
		res := results[id]
		switch {
		case res.Err != nil:
			failures++
			colorBoldRed.Fprintf(w, "job %d: %v\n", id, res.Err)
		case res.Signaled:
			failures++
			colorBoldRed.Fprintf(w, "job %d: killed by %s\n", id, res.Signal)
		case res.ExitCode != 0:
			failures++
			colorBoldRed.Fprintf(w, "job %d: exit status %d\n", id, res.ExitCode)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d jobs failed", failures, len(results))
	}
	return nil
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the composed pipeline without running it")
	runCmd.Flags().StringVar(&separator, "separator", "", "record separator (default: newline)")
	rootCmd.AddCommand(runCmd)
}
