package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/vesting-service/internal/models"
	"github.com/Dan9191/vesting-service/internal/vesting"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Releaser is the single operation the job triggers
type Releaser interface {
	Release(ctx context.Context) (*models.ReleaseResult, error)
}

// ReleaseJob periodically releases whatever has vested
type ReleaseJob struct {
	svc     Releaser
	log     *logrus.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewReleaseJob schedules svc.Release on spec (standard cron syntax or descriptors like "@every 1h")
func NewReleaseJob(svc Releaser, log *logrus.Logger, spec string) (*ReleaseJob, error) {
	j := &ReleaseJob{
		svc:     svc,
		log:     log,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: 30 * time.Second,
	}
	if _, err := j.cron.AddFunc(spec, j.Run); err != nil {
		return nil, fmt.Errorf("invalid release schedule %q: %w", spec, err)
	}
	return j, nil
}

// Run performs one release attempt
func (j *ReleaseJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.svc.Release(ctx)
	switch {
	case errors.Is(err, vesting.ErrCliffNotReached), errors.Is(err, vesting.ErrNoTokensToRelease):
		j.log.Debugf("Scheduled release skipped: %v", err)
	case err != nil:
		j.log.Errorf("Scheduled release failed: %v", err)
	default:
		j.log.Infof("Scheduled release paid %s to %s", result.Amount, result.Beneficiary)
	}
}

// Start runs the job in the background
func (j *ReleaseJob) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for a running release to finish
func (j *ReleaseJob) Stop() {
	<-j.cron.Stop().Done()
}
