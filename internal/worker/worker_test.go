package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/backend/pkg/queue"
)

type fakeRecordings struct {
	objects map[string]bool
}

func (f *fakeRecordings) RecordingExists(_ context.Context, key string) (bool, error) {
	return f.objects[key], nil
}

func (f *fakeRecordings) RecordingURL(_ context.Context, key string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

type fakeAttacher struct {
	mu       sync.Mutex
	attached map[uuid.UUID]string
}

func (f *fakeAttacher) AttachRecording(_ context.Context, sessionID uuid.UUID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attached == nil {
		f.attached = make(map[uuid.UUID]string)
	}
	f.attached[sessionID] = url
	return nil
}

type fakeQueue struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
}

func (q *fakeQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	q.mu.Lock()
	if len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()
		return job, nil
	}
	q.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *fakeQueue) Retry(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return nil
}

func finalizeJob(t *testing.T, sessionID uuid.UUID, key string) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypeRecordingFinalize, queue.RecordingFinalizePayload{SessionID: sessionID, StreamKey: key})
	require.NoError(t, err)
	return job
}

func TestProcessAttachesRecording(t *testing.T) {
	sessionID := uuid.New()
	key := "recordings/" + sessionID.String() + "/live_abc.mp4"
	attacher := &fakeAttacher{}
	p := NewRecordingProcessor(attacher, &fakeRecordings{objects: map[string]bool{key: true}}, &fakeQueue{}, nil)

	require.NoError(t, p.Process(context.Background(), finalizeJob(t, sessionID, "live_abc")))
	assert.Equal(t, "https://cdn.example.com/"+key, attacher.attached[sessionID])
}

func TestProcessRecordingNotReady(t *testing.T) {
	p := NewRecordingProcessor(&fakeAttacher{}, &fakeRecordings{}, &fakeQueue{}, nil)
	err := p.Process(context.Background(), finalizeJob(t, uuid.New(), "live_abc"))
	assert.True(t, errors.Is(err, ErrRecordingNotReady))
}

func TestProcessUnknownJobType(t *testing.T) {
	p := NewRecordingProcessor(&fakeAttacher{}, &fakeRecordings{}, &fakeQueue{}, nil)
	err := p.Process(context.Background(), &queue.Job{Type: "other"})
	assert.Error(t, err)
}

func TestRunRetriesFailedJobs(t *testing.T) {
	q := &fakeQueue{jobs: []*queue.Job{finalizeJob(t, uuid.New(), "live_missing")}}
	p := NewRecordingProcessor(&fakeAttacher{}, &fakeRecordings{}, q, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.retried) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 1, q.retried[0].Attempt)
}

type countingExpirer struct {
	mu    sync.Mutex
	calls int
}

func (e *countingExpirer) ExpireOverdue(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return 1, nil
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	e := &countingExpirer{}
	s := NewSweeper(e, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.calls >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
