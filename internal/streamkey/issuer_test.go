package streamkey

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer() *Issuer {
	return NewIssuer(Config{
		IngestBaseURL:   "rtmp://ingest.example.com/live",
		PlaybackBaseURL: "https://cdn.example.com/hls/",
	})
}

func TestGenerateKeyUnique(t *testing.T) {
	iss := newTestIssuer()
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		k, err := iss.GenerateKey()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(k, "live_"))
		assert.Len(t, k, len("live_")+48)
		_, dup := seen[k]
		require.False(t, dup)
		seen[k] = struct{}{}
	}
}

func TestResolveURLDeterministic(t *testing.T) {
	iss := newTestIssuer()
	a, err := iss.ResolveURL("live_abc")
	require.NoError(t, err)
	b, err := iss.ResolveURL("live_abc")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "https://cdn.example.com/hls/live_abc/index.m3u8", a)

	ingest, err := iss.IngestURL("live_abc")
	require.NoError(t, err)
	assert.Equal(t, "rtmp://ingest.example.com/live/live_abc", ingest)
}

func TestResolveURLErrors(t *testing.T) {
	_, err := NewIssuer(Config{}).ResolveURL("live_abc")
	assert.Error(t, err)
	_, err = newTestIssuer().ResolveURL("")
	assert.Error(t, err)
}

func TestRecordingKey(t *testing.T) {
	id := uuid.MustParse("0190a8e4-0000-7000-8000-000000000001")
	assert.Equal(t, "recordings/0190a8e4-0000-7000-8000-000000000001/live_abc.mp4", RecordingKey(id, "live_abc"))
}
