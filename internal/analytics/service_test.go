package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/pkg/apperr"
)

type fakeSource struct {
	sessions  []models.LiveSession
	err       error
	lastSince *time.Time
}

func (f *fakeSource) SessionsForCommunity(_ context.Context, _ uuid.UUID, since *time.Time) ([]models.LiveSession, error) {
	f.lastSince = since
	return f.sessions, f.err
}

func (f *fakeSource) GetSession(_ context.Context, id uuid.UUID) (*models.LiveSession, error) {
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			s := f.sessions[i]
			return &s, nil
		}
	}
	return nil, apperr.NotFound("session_not_found", "session not found")
}

type fakeResolver map[uuid.UUID]uuid.UUID

func (f fakeResolver) CommunityForHost(_ context.Context, hostID uuid.UUID) (uuid.UUID, error) {
	id, ok := f[hostID]
	if !ok {
		return uuid.Nil, apperr.Forbidden("no_community", "caller does not host a community")
	}
	return id, nil
}

func TestPeriodSince(t *testing.T) {
	now := time.Date(2026, 5, 20, 15, 30, 0, 0, time.UTC)

	today, err := PeriodToday.Since(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), *today)

	week, err := PeriodWeek.Since(now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), *week)

	month, err := PeriodMonth.Since(now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -30), *month)

	all, err := PeriodAll.Since(now)
	require.NoError(t, err)
	assert.Nil(t, all)

	_, err = Period("year").Since(now)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestSummary(t *testing.T) {
	host, community := uuid.New(), uuid.New()
	src := &fakeSource{sessions: []models.LiveSession{
		{ID: uuid.New(), Status: models.SessionEnded, Stats: models.SessionStats{TotalViews: 10, PeakViewers: 7, TotalReactions: 4, AverageWatchTime: 120}},
		{ID: uuid.New(), Status: models.SessionEnded, Stats: models.SessionStats{TotalViews: 3, PeakViewers: 2, AverageWatchTime: 60}},
		{ID: uuid.New(), Status: models.SessionLive, Stats: models.SessionStats{TotalViews: 5, PeakViewers: 9, TotalReactions: 1}},
		{ID: uuid.New(), Status: models.SessionCancelled},
	}}
	svc := NewService(src, fakeResolver{host: community}, nil)
	svc.now = func() time.Time { return time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC) }

	sum, err := svc.Summary(context.Background(), host, PeriodWeek)
	require.NoError(t, err)

	assert.Equal(t, community, sum.CommunityID)
	assert.Equal(t, PeriodWeek, sum.Period)
	require.NotNil(t, src.lastSince)
	assert.Equal(t, time.Date(2026, 5, 13, 15, 0, 0, 0, time.UTC), *src.lastSince)
	assert.Equal(t, 4, sum.TotalSessions)
	assert.Equal(t, map[models.SessionStatus]int{
		models.SessionScheduled: 0,
		models.SessionLive:      1,
		models.SessionEnded:     2,
		models.SessionCancelled: 1,
	}, sum.ByStatus)
	assert.Equal(t, 18, sum.TotalViews)
	assert.Equal(t, 5, sum.TotalReactions)
	assert.Equal(t, 9, sum.MaxPeakViewers)
	assert.Equal(t, int64(90), sum.AverageWatchTime)
}

func TestSummaryJSONNamesPeakAsMax(t *testing.T) {
	raw, err := json.Marshal(Summary{MaxPeakViewers: 9, TotalViews: 18})
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.EqualValues(t, 9, fields["max_peak_viewers"])
	assert.NotContains(t, fields, "peak_viewers")
	assert.EqualValues(t, 18, fields["total_views"])
}

func TestSummaryDefaultsToAll(t *testing.T) {
	host := uuid.New()
	src := &fakeSource{}
	svc := NewService(src, fakeResolver{host: uuid.New()}, nil)

	sum, err := svc.Summary(context.Background(), host, "")
	require.NoError(t, err)
	assert.Equal(t, PeriodAll, sum.Period)
	assert.Nil(t, src.lastSince)
	assert.Zero(t, sum.TotalSessions)
	assert.Zero(t, sum.AverageWatchTime)
	assert.Len(t, sum.ByStatus, 4)
}

func TestSummaryErrors(t *testing.T) {
	host := uuid.New()
	svc := NewService(&fakeSource{}, fakeResolver{host: uuid.New()}, nil)

	_, err := svc.Summary(context.Background(), host, "decade")
	require.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = svc.Summary(context.Background(), uuid.New(), PeriodAll)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	broken := NewService(&fakeSource{err: errors.New("connection reset")}, fakeResolver{host: uuid.New()}, nil)
	_, err = broken.Summary(context.Background(), host, PeriodAll)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInternal, e.Kind)
}

func TestSessionSnapshot(t *testing.T) {
	id := uuid.New()
	stats := models.SessionStats{TotalViews: 4, PeakViewers: 3, TotalReactions: 12}
	svc := NewService(&fakeSource{sessions: []models.LiveSession{{ID: id, Stats: stats}}}, fakeResolver{}, nil)

	got, err := svc.SessionSnapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, stats, got)

	_, err = svc.SessionSnapshot(context.Background(), uuid.New())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
