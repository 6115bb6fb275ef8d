package proc

import (
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
)

// Status describes where a job is in its lifecycle.
type Status int

const (
	// StatusWaiting means the job has been scheduled but no OS process
	// exists for it yet.
	StatusWaiting Status = iota
	// StatusActive means the OS process is running.
	StatusActive
	// StatusTerminated means the process has exited and been reaped, or
	// the job's spawn failed permanently.
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of one job.
type Result struct {
	// ExitCode is the process exit code, -1 if the process was signaled
	// or never ran.
	ExitCode int
	// Signaled is true if the process was ended by a signal rather than
	// a normal exit.
	Signaled bool
	// Signal holds the terminating signal when Signaled is true.
	Signal syscall.Signal
	// Err holds the reap error (ErrWaitFailed wrapped) or the reason the
	// job never ran.
	Err error
}

// Job is one scheduled unit of work backed by an external OS process.
//
// All mutation happens through the owning Controller; callers only read.
type Job struct {
	// ID is the job number, unique within its controller.
	ID int
	// UID is a globally unique identifier for log correlation.
	UID string
	// Command is a human readable description of the invocation.
	Command string
	// Group reports whether signals should be delivered to the job's
	// whole process group rather than the single leader process.
	Group bool

	cmd   *exec.Cmd
	ctl   *Controller
	umask int

	mu       sync.Mutex
	status   Status
	result   Result
	waitOnce sync.Once
	done     chan struct{}
}

func newJob(id int, cmd *exec.Cmd) *Job {
	return &Job{
		ID:      id,
		UID:     uuid.NewString(),
		Command: strings.Join(cmd.Args, " "),
		cmd:     cmd,
		umask:   -1,
		done:    make(chan struct{}),
	}
}

// Status returns a snapshot of the job's lifecycle state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Result returns the terminal outcome. Only meaningful once Status is
// StatusTerminated.
func (j *Job) Result() Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Pid returns the OS process ID, or -1 if the job never started.
func (j *Job) Pid() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cmd.Process == nil {
		return -1
	}
	return j.cmd.Process.Pid
}

// SetUmask arranges for the process to be created with the given umask.
// Must be called before the job is started.
func (j *Job) SetUmask(umask int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.umask = umask
}

// Done returns a channel closed once the job has been reaped.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
}

func (j *Job) setResult(r Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusTerminated
	j.result = r
}
