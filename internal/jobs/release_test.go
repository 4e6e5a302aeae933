package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dan9191/vesting-service/internal/models"
	"github.com/Dan9191/vesting-service/internal/vesting"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReleaser struct {
	calls atomic.Int32
	err   error
}

func (r *countingReleaser) Release(ctx context.Context) (*models.ReleaseResult, error) {
	r.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("missing deadline")
	}
	if r.err != nil {
		return nil, r.err
	}
	return &models.ReleaseResult{Amount: "10", Beneficiary: "alice"}, nil
}

func TestRunLogsOutcome(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level logrus.Level
	}{
		{"paid", nil, logrus.InfoLevel},
		{"cliff", vesting.ErrCliffNotReached, logrus.DebugLevel},
		{"nothing new", vesting.ErrNoTokensToRelease, logrus.DebugLevel},
		{"failure", errors.New("ledger offline"), logrus.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			log.SetLevel(logrus.DebugLevel)
			r := &countingReleaser{err: tt.err}

			j, err := NewReleaseJob(r, log, "@every 1h")
			require.NoError(t, err)
			j.Run()

			assert.Equal(t, int32(1), r.calls.Load())
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, tt.level, hook.LastEntry().Level)
		})
	}
}

func TestInvalidSpec(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := NewReleaseJob(&countingReleaser{}, log, "every now and then")
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := &countingReleaser{}
	j, err := NewReleaseJob(r, log, "@every 1s")
	require.NoError(t, err)

	j.Start()
	assert.Eventually(t, func() bool { return r.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	j.Stop()
}
