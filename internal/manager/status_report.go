package manager

import (
	"time"

	"oxpilot/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:    m.state,
		ModelID:  m.model.ID,
		QueueLen: m.waiting(),
		Inflight: len(m.genCh),
		Err:      m.err,
	}
}

// waiting is the number of queued requests excluding the active one.
func (m *Manager) waiting() int {
	n := len(m.queueCh) - len(m.genCh)
	if n < 0 {
		return 0
	}
	return n
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	snap := m.Snapshot()
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	return types.StatusResponse{
		State:          string(snap.State),
		Model:          m.model,
		QueueLen:       snap.QueueLen,
		Inflight:       snap.Inflight,
		MaxQueueDepth:  m.maxQueueDepth,
		ServedTotal:    m.served,
		RejectedTotal:  m.rejected,
		LastError:      snap.Err,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}
