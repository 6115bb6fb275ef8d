package logger

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// NewReport creates an empty log summary.
func NewReport() *Report {
	return &Report{
		CommandRuns:   make(map[string]int),
		SpawnFailures: make(map[string]int),
		SignaledExits: make(map[string]int),
		NonZeroExits:  make(map[string]int),
	}
}

// Report summarizes a job event log: what ran, what failed to spawn, and
// what ended abnormally.
type Report struct {
	Entries int `json:"entries"`

	CommandRuns   map[string]int `json:"command_runs"`
	SpawnFailures map[string]int `json:"spawn_failures"`
	SignaledExits map[string]int `json:"signaled_exits"`
	NonZeroExits  map[string]int `json:"non_zero_exits"`
	BrokenPipes   int            `json:"broken_pipes"`
	OrphanedJobs  int            `json:"orphaned_jobs"`
}

// Update folds one log entry into the report.
func (r *Report) Update(e *Entry) {
	r.Entries++

	switch {
	case e.Event.JobStarted != nil:
		r.CommandRuns[e.Event.JobStarted.Command]++
	case e.Event.JobTerminated != nil:
		event := e.Event.JobTerminated
		if event.Signal != "" {
			r.SignaledExits[event.Command]++
		} else if event.ExitCode != 0 {
			r.NonZeroExits[event.Command]++
		}
	case e.Event.SpawnFailed != nil:
		r.SpawnFailures[e.Event.SpawnFailed.Command]++
	case e.Event.BrokenPipe != nil:
		r.BrokenPipes++
	case e.Event.OrphanedJobs != nil:
		r.OrphanedJobs += len(e.Event.OrphanedJobs.JobIDs)
	}
}

// WriteTo renders the report as a table.
func (r *Report) WriteTo(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 8, 8, 4, ' ', 0)

	fmt.Fprintf(tw, "log entries\t%d\n", r.Entries)
	fmt.Fprintf(tw, "broken pipes\t%d\n", r.BrokenPipes)
	fmt.Fprintf(tw, "orphaned jobs\t%d\n", r.OrphanedJobs)

	writeCounts := func(title string, counts map[string]int) {
		if len(counts) == 0 {
			return
		}
		fmt.Fprintf(tw, "\n%s:\n", title)
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(tw, "  %s\t%d\n", k, counts[k])
		}
	}

	writeCounts("commands run", r.CommandRuns)
	writeCounts("spawn failures", r.SpawnFailures)
	writeCounts("signaled exits", r.SignaledExits)
	writeCounts("non-zero exits", r.NonZeroExits)

	return tw.Flush()
}
