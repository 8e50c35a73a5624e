// Package worker runs the background jobs of ended and overdue sessions.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/streamkey"
	"github.com/aura-community/backend/pkg/queue"
)

// ErrRecordingNotReady means the media pipeline has not written the recording yet.
var ErrRecordingNotReady = errors.New("recording not ready")

// RecordingStore looks up recordings written by the media pipeline.
type RecordingStore interface {
	RecordingExists(ctx context.Context, key string) (bool, error)
	RecordingURL(ctx context.Context, key string) (string, error)
}

// RecordingAttacher stores a recording URL on its session.
type RecordingAttacher interface {
	AttachRecording(ctx context.Context, sessionID uuid.UUID, recordingURL string) error
}

// JobQueue is the queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// RecordingProcessor finalises recordings of ended sessions: it waits for the object to
// appear in the bucket and attaches its URL to the session.
type RecordingProcessor struct {
	sessions RecordingAttacher
	store    RecordingStore
	queue    JobQueue
	logger   *zap.Logger
	backoff  time.Duration
}

// NewRecordingProcessor creates a recording finalisation processor.
func NewRecordingProcessor(sessions RecordingAttacher, store RecordingStore, q JobQueue, logger *zap.Logger) *RecordingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingProcessor{sessions: sessions, store: store, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one recording finalisation job.
func (p *RecordingProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecordingFinalize {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecordingFinalizePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	key := streamkey.RecordingKey(payload.SessionID, payload.StreamKey)
	ok, err := p.store.RecordingExists(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordingNotReady, key)
	}
	url, err := p.store.RecordingURL(ctx, key)
	if err != nil {
		return err
	}
	if err := p.sessions.AttachRecording(ctx, payload.SessionID, url); err != nil {
		return fmt.Errorf("attach recording: %w", err)
	}
	p.logger.Info("recording finalized", zap.String("session_id", payload.SessionID.String()), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *RecordingProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("recording worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *RecordingProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Expirer ends live sessions whose time box ran out.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Sweeper periodically ends overdue sessions.
type Sweeper struct {
	sessions Expirer
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper running every interval.
func NewSweeper(sessions Expirer, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{sessions: sessions, interval: interval, logger: logger}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	n, err := s.sessions.ExpireOverdue(ctx)
	if err != nil {
		s.logger.Warn("expire overdue sessions failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired overdue sessions", zap.Int("count", n))
	}
}

// Run sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
