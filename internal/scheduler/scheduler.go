package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job represents a scheduled task
type Job = func(ctx context.Context) error

type entry struct {
	id       cron.EntryID
	job      Job
	interval time.Duration
}

// Scheduler manages periodic tasks. Each named job runs at most once at a
// time; a tick that arrives while the previous run is busy is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]entry
}

// New creates a new scheduler
func New(log *logrus.Entry) *Scheduler {
	cronLog := cron.PrintfLogger(log.WithField("component", "cron"))
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   c,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]entry),
	}
}

// AddEvery adds a job that runs every interval. Cron schedules have one
// second resolution, so shorter intervals are rounded up. Adding a name
// that is already registered is an error.
func (s *Scheduler) AddEvery(name string, interval time.Duration, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}

	entryID, err := s.cron.AddFunc("@every "+interval.String(), func() {
		if err := job(s.ctx); err != nil && s.ctx.Err() == nil {
			s.log.WithError(err).WithField("job", name).Warn("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entry{id: entryID, job: job, interval: interval}
	s.log.WithFields(logrus.Fields{"job": name, "every": interval.String()}).Debug("Added job")
	return nil
}

// Has reports whether name is scheduled
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.jobs[name]; ok {
		s.cron.Remove(e.id)
		delete(s.jobs, name)
		s.log.WithField("job", name).Debug("Removed job")
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, cancels the context handed to running jobs and
// waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunNow immediately executes a registered job once
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not scheduled", name)
	}
	return e.job(s.ctx)
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		ce := s.cron.Entry(e.id)
		infos = append(infos, JobInfo{
			Name:     name,
			Interval: e.interval,
			NextRun:  ce.Next,
			LastRun:  ce.Prev,
		})
	}
	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name     string
	Interval time.Duration
	NextRun  time.Time
	LastRun  time.Time
}
