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

	"github.com/TheBrit007/rork-shield-watch/internal/models"
	entitlement "github.com/TheBrit007/rork-shield-watch/internal/services/entitlement"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateReport(ctx context.Context, report models.Report) error {
	return m.Called(ctx, report).Error(0)
}
func (m *RepoMock) ReadReport(ctx context.Context, id string) (*models.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}
func (m *RepoMock) ListReports(ctx context.Context, filter models.ReportFilter) ([]*models.Report, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Report), args.Error(1)
}
func (m *RepoMock) UpvoteReport(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

type QuotaMock struct{ mock.Mock }

func (m *QuotaMock) TryConsumePost(ctx context.Context, id entitlement.Identity, reportID string) (bool, error) {
	args := m.Called(ctx, id, reportID)
	return args.Bool(0), args.Error(1)
}
func (m *QuotaMock) ReleasePost(ctx context.Context, id entitlement.Identity, reportID string) error {
	return m.Called(ctx, id, reportID).Error(0)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(routingKey string, message any) error {
	return m.Called(routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func validRequest() models.DummyReport {
	return models.DummyReport{
		AgencyID:    "agency-7",
		Latitude:    37.7749,
		Longitude:   -122.4194,
		Description: "checkpoint on the corner",
	}
}

func TestReportService_Create(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	anonIdent := entitlement.Identity{DeviceID: "device-1"}
	userIdent := entitlement.Identity{
		DeviceID: "device-1",
		User:     &models.User{UID: "uid-1", Username: "alice"},
	}

	t.Run("anonymous create consumes quota and stores report", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		quota := new(QuotaMock)
		events := new(PublisherMock)
		quota.On("TryConsumePost", mock.Anything, anonIdent, mock.Anything).Return(true, nil).Once()
		repo.On("CreateReport", mock.Anything, mock.MatchedBy(func(r models.Report) bool {
			return r.AgencyID == "agency-7" &&
				r.Upvotes == 0 && !r.Verified &&
				r.UserUID == nil && r.Username == nil &&
				r.Timestamp.Equal(now) &&
				r.Media != nil && len(r.Media) == 0
		})).Return(nil).Once()
		events.On("Publish", "report.created", mock.Anything).Return(nil).Once()
		cache.On("Invalidate", "reports:latest").Return(nil).Once()
		cache.On("Set", mock.Anything, mock.Anything, time.Hour).Return(nil).Once()
		svc := NewReportService(repo, cache, quota, events, newNoopLogger()).
			WithClock(func() time.Time { return now })

		report, err := svc.Create(context.Background(), anonIdent, validRequest())

		assert.NoError(t, err)
		assert.NotEmpty(t, report.ID)
		repo.AssertExpectations(t)
		quota.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("registered create attributes the author", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		quota := new(QuotaMock)
		quota.On("TryConsumePost", mock.Anything, userIdent, mock.Anything).Return(true, nil).Once()
		repo.On("CreateReport", mock.Anything, mock.MatchedBy(func(r models.Report) bool {
			return r.UserUID != nil && *r.UserUID == "uid-1" &&
				r.Username != nil && *r.Username == "alice"
		})).Return(nil).Once()
		cache.On("Invalidate", "reports:latest").Return(nil).Once()
		cache.On("Set", mock.Anything, mock.Anything, time.Hour).Return(nil).Once()
		svc := NewReportService(repo, cache, quota, nil, newNoopLogger()).
			WithClock(func() time.Time { return now })

		_, err := svc.Create(context.Background(), userIdent, validRequest())

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("exhausted quota rejects the post", func(t *testing.T) {
		repo := new(RepoMock)
		quota := new(QuotaMock)
		quota.On("TryConsumePost", mock.Anything, anonIdent, mock.Anything).Return(false, nil).Once()
		svc := NewReportService(repo, new(CacheMock), quota, nil, newNoopLogger())

		_, err := svc.Create(context.Background(), anonIdent, validRequest())

		assert.ErrorIs(t, err, ErrQuotaExceeded)
		repo.AssertNotCalled(t, "CreateReport", mock.Anything, mock.Anything)
	})

	t.Run("quota storage failure denies the post", func(t *testing.T) {
		repo := new(RepoMock)
		quota := new(QuotaMock)
		quota.On("TryConsumePost", mock.Anything, anonIdent, mock.Anything).
			Return(false, errors.New("db down")).Once()
		svc := NewReportService(repo, new(CacheMock), quota, nil, newNoopLogger())

		_, err := svc.Create(context.Background(), anonIdent, validRequest())

		assert.ErrorIs(t, err, ErrQuotaExceeded)
		repo.AssertNotCalled(t, "CreateReport", mock.Anything, mock.Anything)
	})

	t.Run("storage failure releases the consumed slot", func(t *testing.T) {
		repo := new(RepoMock)
		quota := new(QuotaMock)
		var consumedID string
		quota.On("TryConsumePost", mock.Anything, anonIdent, mock.Anything).
			Run(func(args mock.Arguments) { consumedID = args.String(2) }).
			Return(true, nil).Once()
		repo.On("CreateReport", mock.Anything, mock.Anything).
			Return(errors.New("insert failed")).Once()
		quota.On("ReleasePost", mock.Anything, anonIdent, mock.MatchedBy(func(id string) bool {
			return id == consumedID
		})).Return(nil).Once()
		svc := NewReportService(repo, new(CacheMock), quota, nil, newNoopLogger())

		_, err := svc.Create(context.Background(), anonIdent, validRequest())

		assert.Error(t, err)
		quota.AssertExpectations(t)
	})

	t.Run("release failure keeps the original error", func(t *testing.T) {
		repo := new(RepoMock)
		quota := new(QuotaMock)
		quota.On("TryConsumePost", mock.Anything, userIdent, mock.Anything).Return(true, nil).Once()
		repo.On("CreateReport", mock.Anything, mock.Anything).
			Return(errors.New("insert failed")).Once()
		quota.On("ReleasePost", mock.Anything, userIdent, mock.Anything).
			Return(errors.New("db down")).Once()
		svc := NewReportService(repo, new(CacheMock), quota, nil, newNoopLogger())

		_, err := svc.Create(context.Background(), userIdent, validRequest())

		assert.ErrorContains(t, err, "insert failed")
		quota.AssertExpectations(t)
	})

	t.Run("publish failure does not fail the create", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		quota := new(QuotaMock)
		events := new(PublisherMock)
		quota.On("TryConsumePost", mock.Anything, anonIdent, mock.Anything).Return(true, nil).Once()
		repo.On("CreateReport", mock.Anything, mock.Anything).Return(nil).Once()
		events.On("Publish", "report.created", mock.Anything).
			Return(errors.New("broker down")).Once()
		cache.On("Invalidate", "reports:latest").Return(nil).Once()
		cache.On("Set", mock.Anything, mock.Anything, time.Hour).Return(nil).Once()
		svc := NewReportService(repo, cache, quota, events, newNoopLogger())

		_, err := svc.Create(context.Background(), anonIdent, validRequest())

		assert.NoError(t, err)
	})
}

func TestReportService_Read(t *testing.T) {
	report := &models.Report{ID: "report-1", AgencyID: "agency-7"}

	t.Run("cache miss falls back to storage", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", "report:report-1", mock.Anything).Return(false, nil).Once()
		repo.On("ReadReport", mock.Anything, "report-1").Return(report, nil).Once()
		cache.On("Set", "report:report-1", report, time.Hour).Return(nil).Once()
		svc := NewReportService(repo, cache, new(QuotaMock), nil, newNoopLogger())

		got, err := svc.Read(context.Background(), "report-1")

		assert.NoError(t, err)
		assert.Equal(t, report, got)
		repo.AssertExpectations(t)
	})

	t.Run("cache hit skips storage", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", "report:report-1", mock.Anything).Return(true, nil).Once()
		svc := NewReportService(repo, cache, new(QuotaMock), nil, newNoopLogger())

		_, err := svc.Read(context.Background(), "report-1")

		assert.NoError(t, err)
		repo.AssertNotCalled(t, "ReadReport", mock.Anything, mock.Anything)
	})

	t.Run("storage error propagates", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", "report:missing", mock.Anything).Return(false, nil).Once()
		repo.On("ReadReport", mock.Anything, "missing").
			Return(nil, errors.New("no rows")).Once()
		svc := NewReportService(repo, cache, new(QuotaMock), nil, newNoopLogger())

		_, err := svc.Read(context.Background(), "missing")

		assert.Error(t, err)
	})
}

func TestReportService_List(t *testing.T) {
	reports := []*models.Report{{ID: "report-1"}, {ID: "report-2"}}

	t.Run("default page is cached after storage read", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		filter := models.ReportFilter{Limit: 50}
		cache.On("Get", "reports:latest", mock.Anything).Return(false, nil).Once()
		repo.On("ListReports", mock.Anything, filter).Return(reports, nil).Once()
		cache.On("Set", "reports:latest", reports, 5*time.Minute).Return(nil).Once()
		svc := NewReportService(repo, cache, new(QuotaMock), nil, newNoopLogger())

		got, err := svc.List(context.Background(), filter)

		assert.NoError(t, err)
		assert.Equal(t, reports, got)
		cache.AssertExpectations(t)
	})

	t.Run("proximity filter bypasses the cache", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		lat, lon, radius := 37.0, -122.0, 10.0
		filter := models.ReportFilter{Latitude: &lat, Longitude: &lon, RadiusKm: &radius, Limit: 50}
		repo.On("ListReports", mock.Anything, filter).Return(reports, nil).Once()
		svc := NewReportService(repo, cache, new(QuotaMock), nil, newNoopLogger())

		_, err := svc.List(context.Background(), filter)

		assert.NoError(t, err)
		cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReportService_Upvote(t *testing.T) {
	t.Run("upvote returns new count and drops caches", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		repo.On("UpvoteReport", mock.Anything, "report-1").Return(4, nil).Once()
		cache.On("Invalidate", "report:report-1").Return(nil).Once()
		cache.On("Invalidate", "reports:latest").Return(nil).Once()
		svc := NewReportService(repo, cache, new(QuotaMock), nil, newNoopLogger())

		count, err := svc.Upvote(context.Background(), "report-1")

		assert.NoError(t, err)
		assert.Equal(t, 4, count)
		cache.AssertExpectations(t)
	})

	t.Run("missing report yields zero without error", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		repo.On("UpvoteReport", mock.Anything, "missing").Return(0, nil).Once()
		cache.On("Invalidate", mock.Anything).Return(nil)
		svc := NewReportService(repo, cache, new(QuotaMock), nil, newNoopLogger())

		count, err := svc.Upvote(context.Background(), "missing")

		assert.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestReportService_Select(t *testing.T) {
	t.Run("selecting stores the id with ttl", func(t *testing.T) {
		cache := new(CacheMock)
		reportID := "report-1"
		cache.On("Set", "report:selected:device-1", "report-1", 24*time.Hour).Return(nil).Once()
		svc := NewReportService(new(RepoMock), cache, new(QuotaMock), nil, newNoopLogger())

		err := svc.Select(context.Background(), "device-1", &reportID)

		assert.NoError(t, err)
		cache.AssertExpectations(t)
	})

	t.Run("nil clears the selection", func(t *testing.T) {
		cache := new(CacheMock)
		cache.On("Invalidate", "report:selected:device-1").Return(nil).Once()
		svc := NewReportService(new(RepoMock), cache, new(QuotaMock), nil, newNoopLogger())

		err := svc.Select(context.Background(), "device-1", nil)

		assert.NoError(t, err)
		cache.AssertExpectations(t)
	})

	t.Run("selected reads back the id", func(t *testing.T) {
		cache := new(CacheMock)
		cache.On("Get", "report:selected:device-1", mock.Anything).
			Run(func(args mock.Arguments) {
				ptr := args.Get(1).(*string)
				*ptr = "report-1"
			}).Return(true, nil).Once()
		svc := NewReportService(new(RepoMock), cache, new(QuotaMock), nil, newNoopLogger())

		id, found, err := svc.Selected(context.Background(), "device-1")

		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "report-1", id)
	})
}
