package manager

import (
	"time"

	"oxpilot/internal/generate"
	"oxpilot/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Generator *generate.Generator
	// Model describes the served model for /status and /v1/models.
	Model types.Model
	// MaxQueueDepth counts waiting requests, not the active one. 0 rejects
	// any request while one is active; negative selects the default.
	MaxQueueDepth int
	// MaxWait bounds the time a request may wait for the generation slot.
	MaxWait time.Duration
	// DrainTimeout bounds how long Close waits for the active generation.
	DrainTimeout time.Duration
	Publisher    EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:     StateReady,
		gen:       cfg.Generator,
		model:     cfg.Model,
		publisher: cfg.Publisher,
		startTime: time.Now(),
	}
	if m.gen == nil {
		m.state = StateClosed
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth < 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	// the active request holds a queue slot too
	m.queueCh = make(chan struct{}, m.maxQueueDepth+1)
	m.genCh = make(chan struct{}, 1)
	queueCapacity.Set(float64(m.maxQueueDepth))
	return m
}
