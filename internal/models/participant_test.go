package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	all := []SessionStatus{SessionScheduled, SessionLive, SessionEnded, SessionCancelled}
	allowed := map[[2]SessionStatus]bool{
		{SessionScheduled, SessionLive}:      true,
		{SessionScheduled, SessionCancelled}: true,
		{SessionLive, SessionEnded}:          true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]SessionStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestPermissionBundles(t *testing.T) {
	assert.Equal(t, Permissions{CanStream: true, CanModerate: true, CanReact: true, CanChat: true}, AdminPermissions())
	assert.Equal(t, Permissions{CanReact: true}, ViewerPermissions(SessionSettings{AllowReactions: true}))
	assert.Equal(t, Permissions{CanChat: true}, ViewerPermissions(SessionSettings{AllowChat: true}))

	mod := ModeratorPermissions(RequestedPermissions{})
	assert.False(t, mod.CanStream)
	assert.True(t, mod.CanModerate)
	assert.True(t, ModeratorPermissions(RequestedPermissions{Audio: true}).CanStream)
	assert.True(t, ModeratorPermissions(RequestedPermissions{Video: true}).CanStream)
}

func TestParticipantDeactivateReactivate(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	p := NewViewer(uuid.New(), uuid.New(), uuid.New(), DefaultSessionSettings(), QualityHigh, start)

	p.Deactivate(start.Add(90 * time.Second))
	assert.False(t, p.IsActive)
	assert.Equal(t, int64(90), p.WatchSeconds)
	assert.NotNil(t, p.LeftAt)

	// second deactivate does not count twice
	p.Deactivate(start.Add(10 * time.Minute))
	assert.Equal(t, int64(90), p.WatchSeconds)

	p.PromoteToModerator(RequestedPermissions{Video: true}, start)
	p.Reactivate(QualityLow, start.Add(time.Hour))
	assert.True(t, p.IsActive)
	assert.Nil(t, p.LeftAt)
	assert.Equal(t, ParticipantModerator, p.Role)
	assert.Equal(t, QualityLow, p.Stream.Quality)
}

func TestStreamStatePatch(t *testing.T) {
	on, q := true, QualityMedium
	s := StreamStatePatch{IsMuted: &on, Quality: &q}.Apply(StreamState{HasAudio: true, Quality: QualityAuto})
	assert.Equal(t, StreamState{HasAudio: true, IsMuted: true, Quality: QualityMedium}, s)
}

func TestViewForRedactsKey(t *testing.T) {
	host := uuid.New()
	s := LiveSession{HostID: host, StreamCredential: StreamCredential{Key: "k", PlaybackURL: "u"}}
	assert.Equal(t, "k", s.ViewFor(host).StreamCredential.Key)
	other := s.ViewFor(uuid.New())
	assert.Empty(t, other.StreamCredential.Key)
	assert.Equal(t, "u", other.StreamCredential.PlaybackURL)
}
