package httpapi

import (
	"time"

	"oxpilot/internal/prompt"
	"oxpilot/internal/sampler"
)

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// inferTimeout bounds how long one generation request may run.
// Zero means no additional timeout beyond server/connection timeouts.
var inferTimeout time.Duration

// SetInferTimeout sets the per-request generation timeout (0 disables).
func SetInferTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	inferTimeout = d
}

// Server-wide sampling defaults applied to fields a request leaves unset.
var (
	defaultSampling  = sampler.DefaultConfig()
	defaultMaxTokens = 0
)

// SetDefaults installs the sampling defaults. maxTokens 0 leaves the
// generator default in place.
func SetDefaults(cfg sampler.Config, maxTokens int) {
	defaultSampling = cfg
	if maxTokens < 0 {
		maxTokens = 0
	}
	defaultMaxTokens = maxTokens
}

// chatTemplate renders /v1/chat/completions messages.
var chatTemplate, _ = prompt.Lookup("mistral")

// SetChatTemplate selects the chat prompt format. A nil template keeps the
// current one.
func SetChatTemplate(t *prompt.Template) {
	if t != nil {
		chatTemplate = t
	}
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
