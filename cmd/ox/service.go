package main

import (
	"github.com/rs/zerolog"

	"oxpilot/internal/config"
	"oxpilot/internal/generate"
	"oxpilot/internal/manager"
	"oxpilot/internal/registry"
)

// openService loads the configured model and puts a coordinator in front of
// it. With no model configured the coordinator starts closed and every
// generation request is answered as unavailable. The returned Loaded is nil
// in that case.
func openService(cfg config.Config, log zerolog.Logger, queueDepth int) (*manager.Manager, *registry.Loaded, error) {
	pub := manager.NewLogPublisher(log.With().Str("component", "manager").Logger())
	if cfg.Model == "" {
		log.Warn().Msg("no model configured; generation requests will be rejected")
		return manager.NewWithConfig(manager.ManagerConfig{Publisher: pub}), nil, nil
	}
	loaded, err := registry.Open(registry.Options{
		Model:      cfg.Model,
		ModelsDir:  cfg.ModelsDir,
		Checksum:   cfg.Checksum,
		Tokenizer:  cfg.Tokenizer,
		NgramOrder: cfg.NgramOrder,
		CacheTTL:   cfg.TokenCacheTTL.Duration,
		CacheSize:  cfg.TokenCacheSize,
		Logger:     &log,
	})
	if err != nil {
		return nil, nil, err
	}
	genLog := log.With().Str("component", "generate").Logger()
	gen := generate.New(loaded.Tokenizer, loaded.Model, generate.Options{
		AddBOS:           cfg.AddBOS,
		DefaultMaxTokens: cfg.Sampling.MaxTokens,
		Logger:           &genLog,
	})
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Generator:     gen,
		Model:         loaded.Info,
		MaxQueueDepth: queueDepth,
		MaxWait:       cfg.MaxWait.Duration,
		DrainTimeout:  cfg.DrainTimeout.Duration,
		Publisher:     pub,
	})
	return mgr, loaded, nil
}
