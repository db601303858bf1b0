package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	storageredis "marketplace-settlement/internal/adapter/storage/redis"
	"marketplace-settlement/internal/core/ports/mocks"
	"marketplace-settlement/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type stubLocker struct {
	acquireErr error
	acquired   int
	released   int
}

func (l *stubLocker) Acquire(context.Context) error {
	if l.acquireErr != nil {
		return l.acquireErr
	}
	l.acquired++
	return nil
}

func (l *stubLocker) Release(context.Context) error {
	l.released++
	return nil
}

func newTestService(t *testing.T, locker Locker, reg prometheus.Registerer) (*Service, *mocks.MockIngressService, *mocks.MockPayoutService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	ingress := mocks.NewMockIngressService(ctrl)
	payouts := mocks.NewMockPayoutService(ctrl)
	svc, err := NewService(ServiceParams{
		Logger:   zerolog.Nop(),
		Ingress:  ingress,
		Payouts:  payouts,
		Locker:   locker,
		Metrics:  metrics.NewWorkerJobMetrics(reg),
		Interval: time.Hour,
	})
	require.NoError(t, err)
	return svc, ingress, payouts
}

func TestNewService_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := NewService(ServiceParams{Payouts: mocks.NewMockPayoutService(ctrl)})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Ingress: mocks.NewMockIngressService(ctrl)})
	assert.Error(t, err)
}

func TestRunCycle_RunsJobsInOrder(t *testing.T) {
	locker := &stubLocker{}
	reg := prometheus.NewRegistry()
	svc, ingress, payouts := newTestService(t, locker, reg)

	gomock.InOrder(
		ingress.EXPECT().Sweep(gomock.Any()).Return(2, nil),
		payouts.EXPECT().Reconcile(gomock.Any()).Return(1, nil),
		payouts.EXPECT().ExpireStaleRequests(gomock.Any()).Return(0, nil),
	)

	svc.RunCycle(context.Background())
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)

	count, err := testutil.GatherAndCount(reg, "settlement_worker_job_success_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRunCycle_FailureDoesNotStopLaterJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc, ingress, payouts := newTestService(t, &stubLocker{}, reg)

	ingress.EXPECT().Sweep(gomock.Any()).Return(0, errors.New("db down"))
	payouts.EXPECT().Reconcile(gomock.Any()).DoAndReturn(func(context.Context) (int, error) {
		panic("gateway client nil")
	})
	payouts.EXPECT().ExpireStaleRequests(gomock.Any()).Return(3, nil)

	svc.RunCycle(context.Background())

	failures, err := testutil.GatherAndCount(reg, "settlement_worker_job_failure_total")
	require.NoError(t, err)
	assert.Equal(t, 2, failures)
}

func TestRunCycle_SkipsWhenLockHeld(t *testing.T) {
	locker := &stubLocker{acquireErr: storageredis.ErrLockHeld}
	svc, _, _ := newTestService(t, locker, nil)

	svc.RunCycle(context.Background())
	assert.Equal(t, 0, locker.released)
}

func TestRunCycle_SkipsWhenLockErrors(t *testing.T) {
	locker := &stubLocker{acquireErr: errors.New("redis unreachable")}
	svc, _, _ := newTestService(t, locker, nil)

	svc.RunCycle(context.Background())
	assert.Equal(t, 0, locker.released)
}

func TestRun_StopsOnCancel(t *testing.T) {
	svc, ingress, payouts := newTestService(t, NoopLocker{}, nil)
	ingress.EXPECT().Sweep(gomock.Any()).Return(0, nil).AnyTimes()
	payouts.EXPECT().Reconcile(gomock.Any()).Return(0, nil).AnyTimes()
	payouts.EXPECT().ExpireStaleRequests(gomock.Any()).Return(0, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
