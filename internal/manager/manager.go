package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"oxpilot/internal/generate"
	"oxpilot/pkg/types"
)

type Manager struct {
	mu        sync.RWMutex
	state     State
	gen       *generate.Generator
	model     types.Model
	err       string
	publisher EventPublisher
	startTime time.Time
	lastUsed  time.Time
	served    uint64
	rejected  uint64

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: waiting requests plus the active one
}

// New returns a Manager serving gen with default queue settings.
func New(gen *generate.Generator, mdl types.Model) *Manager {
	return NewWithConfig(ManagerConfig{
		Generator:     gen,
		Model:         mdl,
		MaxQueueDepth: -1, // use package defaults
	})
}

// SetEventPublisher replaces the event sink. A nil publisher drops events.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

// Begin validates req, waits for the model and starts a stream. The slot is
// held until the stream ends or is closed. Validation failures are returned
// before any queue slot is taken.
func (m *Manager) Begin(ctx context.Context, req generate.Request) (*generate.Stream, error) {
	if m.gen == nil {
		return nil, unavailableError{msg: "no model loaded"}
	}
	prepared, err := m.gen.Prepare(req)
	if err != nil {
		return nil, err
	}
	release, err := m.beginGeneration(ctx)
	if err != nil {
		return nil, err
	}
	// until the stream owns the slot, every exit (a panic included) frees it
	handedOff := false
	defer func() {
		if !handedOff {
			release()
		}
	}()
	stream, err := prepared.Start(ctx)
	if err != nil {
		m.recordFailure(err)
		return nil, err
	}
	started := time.Now()
	m.publish("started", map[string]any{
		"prompt_tokens": prepared.PromptTokens(),
		"max_tokens":    prepared.MaxTokens(),
	})
	stream.OnClose(func() {
		release()
		o := stream.Outcome()
		fields := map[string]any{
			"reason":            string(o.Reason),
			"completion_tokens": o.Usage.CompletionTokens,
			"duration_ms":       time.Since(started).Milliseconds(),
		}
		if o.Err != nil {
			fields["error"] = o.Err.Error()
			m.recordFailure(o.Err)
		}
		m.publish("finished", fields)
	})
	handedOff = true
	return stream, nil
}

func (m *Manager) recordFailure(err error) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	m.mu.Lock()
	m.err = err.Error()
	m.mu.Unlock()
}

func (m *Manager) publish(name string, fields map[string]any) {
	m.mu.RLock()
	p := m.publisher
	id := m.model.ID
	m.mu.RUnlock()
	p.Publish(Event{Name: name, ModelID: id, Fields: fields})
}

// Ready reports whether new requests can be admitted.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady
}

// ListModels returns the served model, or nothing when none is loaded.
func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.gen == nil {
		return nil
	}
	return []types.Model{m.model}
}

// Close stops admitting requests, waits up to the drain timeout for the
// active generation to finish, then closes the model.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state != StateReady {
		m.mu.Unlock()
		return nil
	}
	m.state = StateDraining
	m.mu.Unlock()
	m.publish("draining", nil)

	timer := time.NewTimer(m.drainTimeout)
	defer timer.Stop()
	drained := false
	select {
	case m.genCh <- struct{}{}:
		drained = true
	case <-timer.C:
	}

	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()

	var err error
	if drained && m.gen != nil {
		err = m.gen.Model().Close()
	}
	m.publish("closed", map[string]any{"drained": drained})
	return err
}
