package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"oxpilot/internal/config"
	"oxpilot/internal/httpapi"
	"oxpilot/internal/prompt"
)

const shutdownGrace = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Serve the model over HTTP",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, nil)
		},
	}
	d := defaults()
	f := cmd.Flags()
	f.String("addr", d.Addr, "HTTP listen address, e.g. :9090")
	f.Int("max-queue-depth", d.MaxQueueDepth, "Requests allowed to wait for the generation slot")
	f.Duration("max-wait", d.MaxWait.Duration, "Longest a request may wait for the generation slot")
	f.Duration("drain-timeout", d.DrainTimeout.Duration, "Time given to the active generation on shutdown")
	f.Duration("infer-timeout", d.InferTimeout.Duration, "Per-request generation timeout (0 disables)")
	f.Bool("cors", d.CORS.Enabled, "Enable CORS")
	f.String("cors-origins", "", "Comma-separated allowed CORS origins")
	addModelFlags(cmd)
	return cmd
}

// serve runs the HTTP server until ctx is canceled. ready, when non-nil,
// receives the bound address once the listener is open.
func serve(ctx context.Context, cfg config.Config, ready chan<- string) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	mgr, loaded, err := openService(cfg, log, cfg.MaxQueueDepth)
	if err != nil {
		return err
	}
	if loaded != nil {
		defer loaded.Close()
	}
	tmpl, err := prompt.Lookup(cfg.Template)
	if err != nil {
		return err
	}

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetInferTimeout(cfg.InferTimeout.Duration)
	httpapi.SetDefaults(cfg.SamplerConfig(), cfg.Sampling.MaxTokens)
	httpapi.SetChatTemplate(tmpl)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)
	// generations outlive the signal by the drain timeout, then get canceled
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("model", cfg.Model).
		Str("template", tmpl.Name()).
		Int("max_queue_depth", cfg.MaxQueueDepth).
		Msg("ox listening")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		if err := mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("close model")
		}
		cancelBase()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	return g.Wait()
}
