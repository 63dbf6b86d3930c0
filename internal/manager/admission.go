package manager

import (
	"context"
	"sync"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Returns a release func that is safe to call more than once.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()
	switch state {
	case StateClosed:
		return func() {}, unavailableError{msg: "no model loaded"}
	case StateDraining:
		m.reject(reasonDraining)
		return func() {}, CapacityError{Reason: "shutting down"}
	}

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	// A full queue is rejected right away, never waited on.
	select {
	case m.queueCh <- struct{}{}:
	default:
		m.reject(reasonQueueFull)
		return func() {}, CapacityError{Reason: "queue full"}
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-m.queueCh
			queueLen.Dec()
		}
	}()
	queueLen.Inc()
	waitStart := time.Now()
	select {
	case m.genCh <- struct{}{}:
	default:
		m.publish("queued", map[string]any{"queue_len": len(m.queueCh) - 1})
		timer := time.NewTimer(m.maxWait)
		defer timer.Stop()
		select {
		case m.genCh <- struct{}{}:
		case <-ctx.Done():
			m.publish("abandoned", map[string]any{"waited_ms": time.Since(waitStart).Milliseconds()})
			return func() {}, ctx.Err()
		case <-timer.C:
			m.reject(reasonWait)
			return func() {}, CapacityError{Reason: "timed out waiting for the model"}
		}
	}
	acquired = true
	queueLen.Dec()
	inflight.Inc()
	queueWait.Observe(time.Since(waitStart).Seconds())

	m.mu.Lock()
	m.served++
	m.lastUsed = time.Now()
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			inflight.Dec()
			<-m.genCh
			<-m.queueCh
		})
	}, nil
}

func (m *Manager) reject(reason string) {
	rejectedTotal.WithLabelValues(reason).Inc()
	m.mu.Lock()
	m.rejected++
	m.mu.Unlock()
	m.publish("rejected", map[string]any{"reason": reason})
}
