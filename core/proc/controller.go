package proc

import (
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	// ErrSpawnFailed is the error resulting if the OS-level fork/exec of a
	// job's process failed. The job stays in StatusWaiting.
	ErrSpawnFailed = errors.New("spawn failed")
	// ErrWaitFailed is the error resulting if reaping a job's process
	// failed.
	ErrWaitFailed = errors.New("wait failed")
	// ErrNeverStarted marks the result of a job that was scheduled but
	// whose process never ran.
	ErrNeverStarted = errors.New("job never started")
	// ErrNotOwned is the error resulting if a job is passed to a
	// controller other than the one that scheduled it.
	ErrNotOwned = errors.New("job not owned by this controller")
)

// Events receives notifications about job lifecycle changes.
type Events interface {
	JobStarted(job *Job)
	JobTerminated(job *Job)
	SpawnFailed(job *Job, err error)
	SignalIgnored(job *Job, sig syscall.Signal)
	OrphanedJobs(jobs []*Job)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) JobStarted(*Job)                    {}
func (NopEvents) JobTerminated(*Job)                 {}
func (NopEvents) SpawnFailed(*Job, error)            {}
func (NopEvents) SignalIgnored(*Job, syscall.Signal) {}
func (NopEvents) OrphanedJobs([]*Job)                {}

// Controller owns the job table for one shell context. It spawns, signals,
// and reaps the OS processes behind scheduled jobs, serializing every spawn
// through its registry's fork lock.
type Controller struct {
	registry *Registry
	events   Events

	mu     sync.Mutex
	jobs   map[int]*Job
	nextID int
	closed bool
}

// NewController creates a controller registered with the default registry.
func NewController(events Events) *Controller {
	return NewControllerWithRegistry(DefaultRegistry, events)
}

// NewControllerWithRegistry creates a controller registered with reg.
// A nil events sink discards notifications.
func NewControllerWithRegistry(reg *Registry, events Events) *Controller {
	if events == nil {
		events = NopEvents{}
	}
	c := &Controller{
		registry: reg,
		events:   events,
		jobs:     make(map[int]*Job),
		nextID:   1,
	}
	reg.register(c)
	return c
}

// Schedule allocates a job for cmd in StatusWaiting. No process is created
// until Start.
func (c *Controller) Schedule(cmd *exec.Cmd) *Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	job := newJob(c.nextID, cmd)
	job.ctl = c
	c.nextID++
	c.jobs[job.ID] = job
	return job
}

// Start spawns the OS process for job. The fork, descriptor duplication and
// exec happen under the process-wide fork lock so concurrent controllers
// cannot leak pipe descriptors into each other's children.
//
// On failure the job remains in StatusWaiting; callers that want a retry
// must reschedule explicitly.
func (c *Controller) Start(job *Job) error {
	if !c.Owns(job) {
		return ErrNotOwned
	}
	if s := job.Status(); s != StatusWaiting {
		return fmt.Errorf("job %d is %s, not waiting", job.ID, s)
	}

	err := c.registry.withForkLock(func() error {
		if job.cmd.SysProcAttr == nil {
			job.cmd.SysProcAttr = &syscall.SysProcAttr{}
		}
		job.cmd.SysProcAttr.Setpgid = true

		if job.umask >= 0 {
			old := unix.Umask(job.umask)
			defer unix.Umask(old)
		}

		return job.cmd.Start()
	})
	if err != nil {
		c.events.SpawnFailed(job, err)
		return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	job.setStatus(StatusActive)
	c.events.JobStarted(job)
	return nil
}

// Signal delivers sig to the job's process, or to its whole process group
// when the job was marked as a group. Signaling a terminated or not yet
// started job is reported and ignored.
func (c *Controller) Signal(job *Job, sig syscall.Signal) error {
	if !c.Owns(job) {
		return ErrNotOwned
	}

	switch job.Status() {
	case StatusTerminated, StatusWaiting:
		c.events.SignalIgnored(job, sig)
		return nil
	}

	if job.Group {
		return unix.Kill(-job.Pid(), sig)
	}
	return job.cmd.Process.Signal(sig)
}

// Terminate sends SIGTERM to job. Terminating an already reaped job is a
// reported no-op; use Wait or WaitAll to block until the job is reaped.
func (c *Controller) Terminate(job *Job) error {
	return c.Signal(job, unix.SIGTERM)
}

// Wait blocks until job has terminated and reaps it exactly once. The job
// keeps its slot in the table, carrying the terminal result, until WaitAll
// collects it. Waiting on a job that never started returns immediately
// with ErrNeverStarted in the result.
func (c *Controller) Wait(job *Job) Result {
	job.waitOnce.Do(func() {
		defer close(job.done)

		if job.Status() == StatusWaiting {
			job.setResult(Result{ExitCode: -1, Err: ErrNeverStarted})
		} else {
			job.setResult(resultFromWait(job.cmd, job.cmd.Wait()))
		}

		c.events.JobTerminated(job)
	})
	<-job.done
	return job.Result()
}

// WaitAll blocks until every job owned by this controller is terminated,
// collects it out of the table, and returns the terminal results keyed by
// job ID. Jobs reaped earlier by Wait are still included, so callers see
// the full set of outcomes; jobs that never reached StatusActive are
// accounted for with ErrNeverStarted rather than hanging.
func (c *Controller) WaitAll() map[int]Result {
	results := make(map[int]Result)
	for _, job := range c.snapshot(nil) {
		results[job.ID] = c.Wait(job)
		c.remove(job)
	}
	return results
}

// ActiveJobs returns a snapshot of jobs whose processes are running.
func (c *Controller) ActiveJobs() []*Job {
	return c.snapshot(func(j *Job) bool { return j.Status() == StatusActive })
}

// WaitingJobs returns a snapshot of jobs that have not been started.
func (c *Controller) WaitingJobs() []*Job {
	return c.snapshot(func(j *Job) bool { return j.Status() == StatusWaiting })
}

// Job looks up a job by ID.
func (c *Controller) Job(id int) (*Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	return job, ok
}

// Owns reports whether job was scheduled by this controller. Reaped jobs
// remain owned.
func (c *Controller) Owns(job *Job) bool {
	return job.ctl == c
}

// Close deregisters the controller. Jobs still active are a reported
// condition: callers should drain with WaitAll before closing.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.registry.deregister(c)

	if orphans := c.ActiveJobs(); len(orphans) > 0 {
		c.events.OrphanedJobs(orphans)
		return fmt.Errorf("controller closed with %d active jobs", len(orphans))
	}
	return nil
}

func (c *Controller) remove(job *Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jobs, job.ID)
}

func (c *Controller) snapshot(keep func(*Job) bool) []*Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*Job
	for _, job := range c.jobs {
		if keep == nil || keep(job) {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func resultFromWait(cmd *exec.Cmd, err error) Result {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return Result{ExitCode: cmd.ProcessState.ExitCode()}
	case errors.As(err, &exitErr):
		res := Result{ExitCode: exitErr.ExitCode()}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			res.Signaled = true
			res.Signal = ws.Signal()
		}
		return res
	default:
		return Result{ExitCode: -1, Err: fmt.Errorf("%w: %v", ErrWaitFailed, err)}
	}
}
