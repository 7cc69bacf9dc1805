package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type ResetterMock struct{ mock.Mock }

func (m *ResetterMock) ResetMonthlyUsage(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSchedulerService_ResetUsage(t *testing.T) {
	now := time.Date(2026, 9, 15, 3, 0, 0, 0, time.UTC)

	t.Run("reset passes current time to storage", func(t *testing.T) {
		repo := new(ResetterMock)
		repo.On("ResetMonthlyUsage", mock.Anything, now).Return(3, nil).Once()
		svc := NewSchedulerService(repo, newNoopLogger())
		svc.now = func() time.Time { return now }

		svc.resetUsage(context.Background())

		repo.AssertExpectations(t)
	})

	t.Run("storage failure does not panic", func(t *testing.T) {
		repo := new(ResetterMock)
		repo.On("ResetMonthlyUsage", mock.Anything, mock.Anything).
			Return(0, errors.New("db down")).Once()
		svc := NewSchedulerService(repo, newNoopLogger())

		svc.resetUsage(context.Background())

		repo.AssertExpectations(t)
	})
}

func TestSchedulerService_Run(t *testing.T) {
	t.Run("run fires immediately and stops on cancel", func(t *testing.T) {
		repo := new(ResetterMock)
		repo.On("ResetMonthlyUsage", mock.Anything, mock.Anything).Return(1, nil)
		svc := NewSchedulerService(repo, newNoopLogger())
		svc.interval = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			svc.Run(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool {
			return len(repo.Calls) >= 1
		}, time.Second, 10*time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scheduler did not stop after context cancel")
		}
	})
}
