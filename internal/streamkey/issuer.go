// Package streamkey issues opaque ingest keys and maps them to stream URLs.
package streamkey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	keyPrefix = "live_"
	keyBytes  = 24
	// FolderRecordings is the object prefix recordings are written under.
	FolderRecordings = "recordings"
)

// Config holds the base URLs keys resolve against.
type Config struct {
	IngestBaseURL   string // e.g. rtmp://ingest.example.com/live
	PlaybackBaseURL string // e.g. https://cdn.example.com/hls
}

// Issuer generates stream keys. It holds no mutable state.
type Issuer struct {
	cfg Config
}

// NewIssuer creates an issuer.
func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg}
}

// GenerateKey returns a new unguessable key.
func (i *Issuer) GenerateKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}

// ResolveURL returns the playback URL for key. Same key, same URL.
func (i *Issuer) ResolveURL(key string) (string, error) {
	return join(i.cfg.PlaybackBaseURL, key, "index.m3u8")
}

// IngestURL returns the URL the broadcaster pushes to.
func (i *Issuer) IngestURL(key string) (string, error) {
	return join(i.cfg.IngestBaseURL, key)
}

// RecordingKey returns the object key a recording of the session is stored under:
// recordings/{session_id}/{stream_key}.mp4.
func RecordingKey(sessionID uuid.UUID, key string) string {
	return path.Join(FolderRecordings, sessionID.String(), key+".mp4")
}

func join(base string, elem ...string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("stream base url not configured")
	}
	if len(elem) == 0 || elem[0] == "" {
		return "", fmt.Errorf("empty stream key")
	}
	u, err := url.JoinPath(base, elem...)
	if err != nil {
		return "", fmt.Errorf("join stream url: %w", err)
	}
	return u, nil
}
