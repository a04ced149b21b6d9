package janitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/synergyhub/pkg/audit"
)

// Job is a scheduled maintenance task
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) (int64, error)
}

// Janitor runs maintenance jobs on cron schedules
type Janitor struct {
	cron    *cron.Cron
	log     *logrus.Logger
	timeout time.Duration

	mu   sync.Mutex
	jobs []Job
}

// New creates a janitor. Each run is bounded by timeout.
func New(log *logrus.Logger, timeout time.Duration) *Janitor {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Janitor{
		cron:    cron.New(cron.WithLogger(cron.PrintfLogger(log)), cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log)))),
		log:     log,
		timeout: timeout,
	}
}

// Add schedules job
func (j *Janitor) Add(job Job) error {
	if _, err := j.cron.AddFunc(job.Schedule, func() { j.run(context.Background(), job) }); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
	}
	j.mu.Lock()
	j.jobs = append(j.jobs, job)
	j.mu.Unlock()
	return nil
}

func (j *Janitor) run(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	entry := j.log.WithField("job", job.Name)
	n, err := job.Run(ctx)
	entry = entry.WithFields(logrus.Fields{"removed": n, "duration": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Error("Maintenance job failed")
		return fmt.Errorf("%s: %w", job.Name, err)
	}
	entry.Info("Maintenance job completed")
	return nil
}

// RunNow runs every job once, in the order they were added
func (j *Janitor) RunNow(ctx context.Context) error {
	j.mu.Lock()
	jobs := append([]Job(nil), j.jobs...)
	j.mu.Unlock()

	var errs []error
	for _, job := range jobs {
		if err := j.run(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start begins running jobs on their schedules
func (j *Janitor) Start() {
	j.cron.Start()
	j.log.WithField("jobs", len(j.cron.Entries())).Info("Janitor started")
}

// Stop stops scheduling and waits for running jobs until ctx is done
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InvitationCleaner deletes expired invitations
type InvitationCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// InvitationJob removes expired invitations
func InvitationJob(schedule string, cleaner InvitationCleaner) Job {
	return Job{
		Name:     "invitation cleanup",
		Schedule: schedule,
		Run: func(ctx context.Context) (int64, error) {
			n, err := cleaner.CleanupExpired(ctx)
			return int64(n), err
		},
	}
}

// AuditPruner deletes audit events past their retention
type AuditPruner interface {
	Cleanup(ctx context.Context, policy audit.RetentionPolicy) (int64, error)
}

// AuditRetentionJob removes audit events older than policy allows
func AuditRetentionJob(schedule string, store AuditPruner, policy audit.RetentionPolicy) Job {
	return Job{
		Name:     "audit retention",
		Schedule: schedule,
		Run: func(ctx context.Context) (int64, error) {
			return store.Cleanup(ctx, policy)
		},
	}
}
