package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/card-service/internal/models"
)

type countingSweeper struct {
	calls       atomic.Int32
	err         error
	hadDeadline atomic.Bool
}

func (c *countingSweeper) RemoveDuplicates(ctx context.Context) (*models.DedupResult, error) {
	c.calls.Add(1)
	_, ok := ctx.Deadline()
	c.hadDeadline.Store(ok)
	if c.err != nil {
		return nil, c.err
	}
	return &models.DedupResult{Message: "Removed 0 duplicate card(s)"}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewSchedulerRejectsInvalidSpec(t *testing.T) {
	_, err := NewScheduler("every tuesday", &countingSweeper{}, time.Minute, quietLogger())
	assert.ErrorContains(t, err, "invalid dedup schedule")
}

func TestRunSweepUsesTimeout(t *testing.T) {
	sweeper := &countingSweeper{}
	s, err := NewScheduler("@daily", sweeper, time.Minute, quietLogger())
	require.NoError(t, err)

	s.runSweep()
	assert.Equal(t, int32(1), sweeper.calls.Load())
	assert.True(t, sweeper.hadDeadline.Load())
}

func TestRunSweepSurvivesFailure(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("store down")}
	s, err := NewScheduler("@daily", sweeper, time.Minute, quietLogger())
	require.NoError(t, err)

	assert.NotPanics(t, s.runSweep)
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

func TestSchedulerRunsOnSchedule(t *testing.T) {
	sweeper := &countingSweeper{}
	s, err := NewScheduler("@every 1s", sweeper, time.Second, quietLogger())
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
