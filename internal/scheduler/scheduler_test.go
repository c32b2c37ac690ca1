package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("not a cron spec", "backfill", func(context.Context) (int, error) { return 0, nil }, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	var runs atomic.Int32
	s, err := New("@every 1h", "backfill", func(ctx context.Context) (int, error) {
		runs.Add(1)
		return 3, nil
	}, zerolog.Nop())
	require.NoError(t, err)

	s.RunOnce()
	assert.EqualValues(t, 1, runs.Load())

	s.job = func(context.Context) (int, error) { return 0, errors.New("boom") }
	s.RunOnce()
}

func TestStartupRunAndStop(t *testing.T) {
	done := make(chan struct{}, 1)
	s, err := New("@every 1h", "backfill", func(ctx context.Context) (int, error) {
		select {
		case done <- struct{}{}:
		default:
		}
		return 0, nil
	}, zerolog.Nop(), WithTimeout(time.Second))
	require.NoError(t, err)

	s.Start(10 * time.Millisecond)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run did not happen")
	}
	s.Stop()

	var after atomic.Int32
	s.job = func(context.Context) (int, error) { after.Add(1); return 0, nil }
	s.RunOnce()
	assert.Zero(t, after.Load(), "stopped scheduler must not run jobs")
}

func TestTimeoutIsApplied(t *testing.T) {
	var hadDeadline atomic.Bool
	s, err := New("@every 1h", "backfill", func(ctx context.Context) (int, error) {
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
		return 0, nil
	}, zerolog.Nop(), WithTimeout(time.Minute))
	require.NoError(t, err)

	s.RunOnce()
	assert.True(t, hadDeadline.Load())
}
