// Package logger captures engine diagnostics as newline delimited JSON so
// job lifecycles can be audited after the fact.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pipeshell/pipeshell/core/proc"
)

// Recorder is a callback that stores entries in an external datastore.
type Recorder func(e *Entry) error

// Logger records engine events.
type Logger struct {
	Record Recorder
}

// NewJSONLinesRecorder creates a Logger that exports entries in newline
// delimited JSON object format.
func NewJSONLinesRecorder(w io.Writer) *Logger {
	return &Logger{
		Record: func(e *Entry) error {
			raw, err := json.Marshal(e)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(raw))
			return err
		},
	}
}

// NewNopRecorder creates a Logger that discards everything.
func NewNopRecorder() *Logger {
	return &Logger{Record: func(*Entry) error { return nil }}
}

// Entry is one logged event.
type Entry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	Event Event `json:"event"`
}

// Event holds exactly one of the possible event payloads.
type Event struct {
	JobStarted    *JobEvent     `json:"job_started,omitempty"`
	JobTerminated *JobExitEvent `json:"job_terminated,omitempty"`
	SpawnFailed   *SpawnFailure `json:"spawn_failed,omitempty"`
	SignalIgnored *SignalEvent  `json:"signal_ignored,omitempty"`
	OrphanedJobs  *OrphanEvent  `json:"orphaned_jobs,omitempty"`
	BrokenPipe    *PipeEvent    `json:"broken_pipe,omitempty"`
	TeeFailed     *IOEvent      `json:"tee_failed,omitempty"`
	Debug         *DebugMessage `json:"debug,omitempty"`
}

type JobEvent struct {
	JobID   int    `json:"job_id"`
	JobUID  string `json:"job_uid"`
	Command string `json:"command"`
	Pid     int    `json:"pid,omitempty"`
}

type JobExitEvent struct {
	JobEvent
	ExitCode int    `json:"exit_code"`
	Signal   string `json:"signal,omitempty"`
	Error    string `json:"error,omitempty"`
}

type SpawnFailure struct {
	JobEvent
	Error string `json:"error"`
}

type SignalEvent struct {
	JobEvent
	Signal string `json:"signal"`
}

type OrphanEvent struct {
	JobIDs []int `json:"job_ids"`
}

type PipeEvent struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}

type IOEvent struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type DebugMessage struct {
	Message string `json:"message"`
}

// NewSession creates a logger whose entries share a fresh session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: uuid.NewString()}
}

// Sessionless creates a logger with no session ID attached.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{Logger: l}
}

// SessionLogger logs entries with a shared session ID. It implements
// proc.Events so a controller can report directly into the log.
type SessionLogger struct {
	*Logger
	sessionID string

	// Debug gates Debugf; lifecycle events are always recorded.
	Debug bool
}

var _ proc.Events = (*SessionLogger)(nil)

func (s *SessionLogger) record(event Event) error {
	return s.Record(&Entry{
		TimestampMicros: time.Now().UnixMicro(),
		SessionID:       s.sessionID,
		Event:           event,
	})
}

func jobEvent(job *proc.Job) JobEvent {
	return JobEvent{
		JobID:   job.ID,
		JobUID:  job.UID,
		Command: job.Command,
		Pid:     job.Pid(),
	}
}

// JobStarted implements proc.Events.
func (s *SessionLogger) JobStarted(job *proc.Job) {
	event := jobEvent(job)
	_ = s.record(Event{JobStarted: &event})
}

// JobTerminated implements proc.Events.
func (s *SessionLogger) JobTerminated(job *proc.Job) {
	res := job.Result()
	event := &JobExitEvent{JobEvent: jobEvent(job), ExitCode: res.ExitCode}
	if res.Signaled {
		event.Signal = res.Signal.String()
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
	}
	_ = s.record(Event{JobTerminated: event})
}

// SpawnFailed implements proc.Events.
func (s *SessionLogger) SpawnFailed(job *proc.Job, err error) {
	_ = s.record(Event{SpawnFailed: &SpawnFailure{
		JobEvent: jobEvent(job),
		Error:    err.Error(),
	}})
}

// SignalIgnored implements proc.Events.
func (s *SessionLogger) SignalIgnored(job *proc.Job, sig syscall.Signal) {
	_ = s.record(Event{SignalIgnored: &SignalEvent{
		JobEvent: jobEvent(job),
		Signal:   sig.String(),
	}})
}

// OrphanedJobs implements proc.Events.
func (s *SessionLogger) OrphanedJobs(jobs []*proc.Job) {
	event := &OrphanEvent{}
	for _, job := range jobs {
		event.JobIDs = append(event.JobIDs, job.ID)
	}
	_ = s.record(Event{OrphanedJobs: event})
}

// BrokenPipe reports a producer writing after its consumer closed.
func (s *SessionLogger) BrokenPipe(command string, err error) {
	_ = s.record(Event{BrokenPipe: &PipeEvent{Command: command, Error: err.Error()}})
}

// TeeFailed reports a fan-out filter that could not write its side file.
func (s *SessionLogger) TeeFailed(path string, err error) {
	_ = s.record(Event{TeeFailed: &IOEvent{Path: path, Error: err.Error()}})
}

// Debugf records a diagnostic notification if the Debug flag is set.
func (s *SessionLogger) Debugf(format string, args ...interface{}) {
	if !s.Debug {
		return
	}
	_ = s.record(Event{Debug: &DebugMessage{Message: fmt.Sprintf(format, args...)}})
}

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(e *Entry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var entry Entry
		if err := decoder.Decode(&entry); err != nil {
			return err
		}
		handler(&entry)
	}
	return nil
}
