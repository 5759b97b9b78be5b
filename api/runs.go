package api

import (
	"context"
	"log"
	"sync"
	"time"

	"mangabeat/common"
	"mangabeat/story"
)

// runManager consumes orchestrator event channels, keeps the persisted
// status current, and fans events out to SSE subscribers with replay.
type runManager struct {
	store   RunStore
	uploads *common.S3

	mu     sync.Mutex
	active map[string]*activeRun
}

type activeRun struct {
	mu     sync.Mutex
	buffer []story.Event
	subs   map[chan story.Event]struct{}
	closed bool
}

func newRunManager(store RunStore, uploads *common.S3) *runManager {
	return &runManager{store: store, uploads: uploads, active: make(map[string]*activeRun)}
}

// isActive reports whether a run with the id is still consuming events.
func (m *runManager) isActive(storyID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.active[storyID]
	if !ok {
		return false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return !run.closed
}

// start tracks a new run and consumes its events in the background.
func (m *runManager) start(storyID, mode string, events <-chan story.Event) {
	run := &activeRun{subs: make(map[chan story.Event]struct{})}
	m.mu.Lock()
	m.active[storyID] = run
	m.mu.Unlock()

	now := time.Now()
	status := RunStatus{StoryID: storyID, Mode: mode, State: "running", StartedAt: now, UpdatedAt: now}
	m.save(status)

	go func() {
		for ev := range events {
			run.broadcast(ev)

			status.UpdatedAt = time.Now()
			switch ev.Kind {
			case story.EventComplete:
				status.State = "complete"
				status.Result = ev.Result
				status.Message = ""
				m.uploadResult(ev.Result)
			case story.EventError:
				status.State = "error"
				status.Error = ev.Message
			default:
				status.Message = ev.Message
			}
			m.save(status)
		}
		run.close()
	}()
}

func (m *runManager) save(status RunStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Save(ctx, status); err != nil {
		log.Printf("[API] Failed to save run %s: %v", status.StoryID, err)
	}
}

func (m *runManager) uploadResult(result *story.Result) {
	if m.uploads == nil || result == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := m.uploads.UploadVideo(ctx, result.StoryID, result.FinalVideoPath); err != nil {
		log.Printf("[API] Upload failed for %s: %v", result.StoryID, err)
	}
}

// status returns the persisted state of a run.
func (m *runManager) status(ctx context.Context, storyID string) (*RunStatus, error) {
	return m.store.Get(ctx, storyID)
}

// subscribe returns a channel that replays the run's past events and
// then streams live ones. The returned cancel func must be called when
// the subscriber goes away. ok is false for unknown runs.
func (m *runManager) subscribe(storyID string) (ch <-chan story.Event, cancel func(), ok bool) {
	m.mu.Lock()
	run, exists := m.active[storyID]
	m.mu.Unlock()
	if !exists {
		return nil, nil, false
	}
	return run.subscribe()
}

func (r *activeRun) subscribe() (<-chan story.Event, func(), bool) {
	r.mu.Lock()
	replay := append([]story.Event(nil), r.buffer...)
	closed := r.closed
	sub := make(chan story.Event, 64)
	if !closed {
		r.subs[sub] = struct{}{}
	}
	r.mu.Unlock()

	out := make(chan story.Event, len(replay)+64)
	go func() {
		defer close(out)
		for _, ev := range replay {
			out <- ev
		}
		if closed {
			return
		}
		for ev := range sub {
			out <- ev
		}
	}()

	cancel := func() {
		r.mu.Lock()
		if _, live := r.subs[sub]; live {
			delete(r.subs, sub)
			close(sub)
		}
		r.mu.Unlock()
	}
	return out, cancel, true
}

func (r *activeRun) broadcast(ev story.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append(r.buffer, ev)
	for sub := range r.subs {
		select {
		case sub <- ev:
		default:
			// slow subscriber; it will catch up from the replay on reconnect
		}
	}
}

func (r *activeRun) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for sub := range r.subs {
		delete(r.subs, sub)
		close(sub)
	}
}
