package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultRunTimeout = 1 * time.Minute

// JobFunc is one run of a named job.
type JobFunc func(ctx context.Context) error

// JobScheduler runs named jobs on a shared cron spec. Jobs are registered at
// startup and then scheduled or cancelled by name, so a watcher job can bring
// back any job that went missing.
type JobScheduler struct {
	cronEngine *cron.Cron
	logger     *logrus.Entry
	cronSpec   string
	timeout    time.Duration

	mu       sync.Mutex
	registry map[string]JobFunc
	entries  map[string]cron.EntryID
}

// NewJobScheduler expects a six field cron spec, seconds first
// (e.g. "*/5 * * * * *").
func NewJobScheduler(logger *logrus.Entry, cronSpec string) *JobScheduler {
	return &JobScheduler{
		cronEngine: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		logger:   logger,
		cronSpec: cronSpec,
		timeout:  defaultRunTimeout,
		registry: make(map[string]JobFunc),
		entries:  make(map[string]cron.EntryID),
	}
}

// Register makes a job known under name. It is not scheduled until RunJob.
func (s *JobScheduler) Register(name string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[name] = fn
}

// RunJob schedules a registered job. Scheduling a job that is already
// running is a no-op.
func (s *JobScheduler) RunJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return nil
	}
	fn, ok := s.registry[name]
	if !ok {
		return fmt.Errorf("job %q is not registered", name)
	}
	jobLogger := s.logger.WithField("job", name)
	id, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			jobLogger.WithError(err).Error("Job run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("could not schedule job %q: %w", name, err)
	}
	s.entries[name] = id
	jobLogger.Info("Job scheduled")
	return nil
}

// ListJobs returns the names of scheduled jobs.
func (s *JobScheduler) ListJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *JobScheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cronEngine.Remove(id)
		delete(s.entries, name)
		s.logger.WithField("job", name).Info("Job cancelled")
	}
}

func (s *JobScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, id := range s.entries {
		s.cronEngine.Remove(id)
		delete(s.entries, name)
	}
	s.logger.Info("All jobs cancelled")
}

func (s *JobScheduler) Start() {
	s.logger.Info("Starting job scheduler...")
	s.cronEngine.Start()
}

func (s *JobScheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Job scheduler gracefully stopped.")
}
