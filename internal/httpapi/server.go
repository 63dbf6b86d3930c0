package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oxpilot/internal/generate"
	"oxpilot/internal/stream"
	"oxpilot/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	// Begin admits req and returns its stream. The caller must Close it.
	Begin(ctx context.Context, req generate.Request) (*generate.Stream, error)
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
}

// ownedBy is reported for every model in /v1/models.
const ownedBy = "oxpilot"

var startedAt = time.Now()

type handlers struct {
	svc Service
}

func NewMux(svc Service) http.Handler {
	h := &handlers{svc: svc}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints; event streams and NDJSON are not in the
	// compressible type list and stay unbuffered.
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/v1/completions", h.completions)
	// the engine segment is accepted for client compatibility and ignored
	r.Post("/v1/engines/{engine}/completions", h.completions)
	r.Post("/v1/chat/completions", h.chatCompletions)
	r.Post("/infer", h.infer)
	r.Get("/v1/models", h.models)

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// completions godoc
// @Summary      Create a completion
// @Description  OpenAI-compatible text completion. With stream=true the response is a server-sent event stream of text_completion chunks terminated by [DONE].
// @Tags         completions
// @Accept       json
// @Produce      json
// @Produce      text/event-stream
// @Param        request  body      types.CompletionRequest  true  "Completion request"
// @Success      200      {object}  types.Completion
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /v1/completions [post]
func (h *handlers) completions(w http.ResponseWriter, r *http.Request) {
	var body types.CompletionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	f := stream.NewCompletion(h.modelName(body.Model))
	req := buildRequest(body.Prompt, body.SamplingParams, nil)
	h.generate(w, r, req, body.Stream, f, func(text string, o generate.Outcome) any {
		return f.Whole(text, o)
	})
}

// chatCompletions godoc
// @Summary      Create a chat completion
// @Description  Renders the messages with the configured prompt template and completes the assistant turn.
// @Tags         completions
// @Accept       json
// @Produce      json
// @Produce      text/event-stream
// @Param        request  body      types.ChatCompletionRequest  true  "Chat request"
// @Success      200      {object}  types.ChatCompletion
// @Failure      400      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Router       /v1/chat/completions [post]
func (h *handlers) chatCompletions(w http.ResponseWriter, r *http.Request) {
	var body types.ChatCompletionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	text, err := chatTemplate.Render(body.Messages)
	if err != nil {
		writeError(w, err)
		return
	}
	f := stream.NewChat(h.modelName(body.Model))
	req := buildRequest(text, body.SamplingParams, chatTemplate.Stops())
	h.generate(w, r, req, body.Stream, f, func(text string, o generate.Outcome) any {
		return f.Whole(text, o)
	})
}

// infer godoc
// @Summary      Stream tokens as NDJSON
// @Description  Streams {"token": ...} lines followed by a final {"done": true, ...} line.
// @Tags         completions
// @Accept       json
// @Produce      application/x-ndjson
// @Param        request  body      types.InferRequest  true  "Inference request"
// @Success      200      {object}  types.InferDone
// @Failure      400      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Router       /infer [post]
func (h *handlers) infer(w http.ResponseWriter, r *http.Request) {
	var body types.InferRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	start := time.Now()
	ctx, cancel := generationContext(r)
	defer cancel()
	s, err := h.svc.Begin(ctx, buildRequest(body.Prompt, body.SamplingParams, nil))
	if err != nil {
		h.fail(w, r, err, start)
		return
	}
	defer s.Close()
	requestEvent(r, LevelInfo).Str("model", body.Model).Msg("infer start")

	p := stream.Peek(ctx, s)
	if p.Failed() {
		h.fail(w, r, s.Err(), start)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	out := io.Writer(w)
	if requestLogLevel(r) >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{rid: middleware.GetReqID(r.Context())})
	}
	o, err := stream.Pump(ctx, p, stream.NewNDJSON(out, flusher(w)))
	h.end(r, o, err, start)
}

// models godoc
// @Summary      List models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /v1/models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	resp := types.ModelsResponse{Object: "list", Data: []types.ModelCard{}}
	for _, m := range h.svc.ListModels() {
		resp.Data = append(resp.Data, types.ModelCard{ID: m.ID, Object: "model", Created: startedAt.Unix(), OwnedBy: ownedBy})
	}
	writeJSON(w, resp)
}

// generate runs one completion-style request. Streaming requests pull the
// first chunk before writing headers so a failure on the first step still
// yields an error status.
func (h *handlers) generate(w http.ResponseWriter, r *http.Request, req generate.Request, sse bool, f stream.Framer, whole func(string, generate.Outcome) any) {
	start := time.Now()
	ctx, cancel := generationContext(r)
	defer cancel()
	s, err := h.svc.Begin(ctx, req)
	if err != nil {
		h.fail(w, r, err, start)
		return
	}
	defer s.Close()
	requestEvent(r, LevelInfo).Bool("stream", sse).Int("max_tokens", req.MaxTokens).Msg("generate start")

	if !sse {
		text, o, err := stream.Collect(ctx, s)
		if err != nil {
			h.fail(w, r, err, start)
			return
		}
		writeJSON(w, whole(text, o))
		h.end(r, o, nil, start)
		return
	}

	p := stream.Peek(ctx, s)
	if p.Failed() {
		h.fail(w, r, s.Err(), start)
		return
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	o, err := stream.Pump(ctx, p, stream.NewSSE(stream.NewSSEWriter(w, flusher(w)), f))
	h.end(r, o, err, start)
}

// fail answers a request that produced no output yet.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error, start time.Time) {
	status := statusOf(err)
	switch {
	case r.Context().Err() != nil:
		// client went away; nobody reads the answer
		requestEvent(r, LevelInfo).Dur("dur", time.Since(start)).Msg("generate abandoned")
		return
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		writeJSONError(w, status, "generation timed out")
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
		writeJSONError(w, status, "server shutting down")
	default:
		writeError(w, err)
	}
	lvl := LevelInfo
	if status >= http.StatusInternalServerError {
		lvl = LevelError
	}
	requestEvent(r, lvl).Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("generate end")
}

func (h *handlers) end(r *http.Request, o generate.Outcome, writeErr error, start time.Time) {
	e := requestEvent(r, LevelInfo)
	if o.Reason == generate.Failed {
		e = requestEvent(r, LevelError).Err(o.Err)
	}
	if writeErr != nil {
		e = e.AnErr("write_error", writeErr)
	}
	e.Str("finish_reason", o.Reason.FinishReason()).
		Int("prompt_tokens", o.Usage.PromptTokens).
		Int("completion_tokens", o.Usage.CompletionTokens).
		Dur("dur", time.Since(start)).
		Msg("generate end")
}

// modelName is the model field for responses: what the client asked for, or
// the served model id.
func (h *handlers) modelName(requested string) string {
	if requested != "" {
		return requested
	}
	if ms := h.svc.ListModels(); len(ms) > 0 {
		return ms[0].ID
	}
	return ownedBy
}

// decodeJSON enforces the JSON content type and body limit and decodes into
// v. It writes the error response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// buildRequest overlays the request's sampling fields on the server defaults.
// extraStops are appended to the client's stop list.
func buildRequest(prompt string, p types.SamplingParams, extraStops []string) generate.Request {
	cfg := defaultSampling
	if p.Temperature != nil {
		cfg.Temperature = *p.Temperature
	}
	if p.TopP != nil {
		cfg.TopP = *p.TopP
	}
	if p.RepetitionPenalty != nil {
		cfg.RepetitionPenalty = *p.RepetitionPenalty
	}
	if p.RepeatLastN != nil {
		cfg.RepeatLastN = *p.RepeatLastN
	}
	if p.Seed != nil {
		cfg.Seed = *p.Seed
	}
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	stops := slices.Clone([]string(p.Stop))
	for _, s := range extraStops {
		if !slices.Contains(stops, s) {
			stops = append(stops, s)
		}
	}
	return generate.Request{Prompt: prompt, Sampling: cfg, MaxTokens: maxTokens, Stop: stops}
}

func flusher(w http.ResponseWriter) func() {
	if f, ok := w.(http.Flusher); ok {
		return f.Flush
	}
	return nil
}
