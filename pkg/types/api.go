package types

// SamplingParams are the optional per-request sampling overrides. Nil fields
// fall back to the server defaults.
type SamplingParams struct {
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature; 0 selects the most likely token.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability mass.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Penalty for tokens already present in the recent history.
	// example: 1.1
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty" example:"1.1"`
	// Size of the recent history the penalty looks at; 0 means all of it.
	// example: 64
	RepeatLastN *int `json:"repeat_last_n,omitempty" example:"64"`
	// Random seed for reproducible sampling.
	// example: 42
	Seed *uint64 `json:"seed,omitempty" example:"42"`
	// Stop sequences, a string or an array. Matched text is not returned.
	Stop StopList `json:"stop,omitempty" swaggertype:"array,string"`
}

// CompletionRequest is the body of POST /v1/completions.
type CompletionRequest struct {
	// Model identifier; informational, the loaded model always serves.
	// example: commit-ngram
	Model string `json:"model,omitempty" example:"commit-ngram"`
	// Prompt text. An empty prompt is valid.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Stream the response as server-sent events.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	SamplingParams
}

// ChatMessage is one role-tagged message.
type ChatMessage struct {
	// One of system, user, assistant.
	// example: user
	Role string `json:"role" example:"user"`
	// example: Summarize this diff.
	Content string `json:"content" example:"Summarize this diff."`
}

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// example: commit-ngram
	Model    string        `json:"model,omitempty" example:"commit-ngram"`
	Messages []ChatMessage `json:"messages"`
	// example: false
	Stream bool `json:"stream,omitempty" example:"false"`
	SamplingParams
}

// Usage is token accounting for one request.
type Usage struct {
	// example: 12
	PromptTokens int `json:"prompt_tokens" example:"12"`
	// example: 40
	CompletionTokens int `json:"completion_tokens" example:"40"`
	// example: 52
	TotalTokens int `json:"total_tokens" example:"52"`
}

// CompletionChoice is one generated alternative. FinishReason is null on
// intermediate stream frames.
type CompletionChoice struct {
	Text         string  `json:"text"`
	Index        int     `json:"index"`
	Logprobs     any     `json:"logprobs"`
	FinishReason *string `json:"finish_reason"`
}

// Completion is the response of /v1/completions, and also the shape of each
// streamed frame.
type Completion struct {
	// example: cmpl-2f0c1f4e-6b1a-4c43-9f6e-0d5c0d1b7a11
	ID string `json:"id" example:"cmpl-2f0c1f4e-6b1a-4c43-9f6e-0d5c0d1b7a11"`
	// example: text_completion
	Object string `json:"object" example:"text_completion"`
	// example: 1700000000
	Created int64              `json:"created" example:"1700000000"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *Usage             `json:"usage,omitempty"`
}

// ChatChoice is one complete chat answer.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason *string     `json:"finish_reason"`
}

// ChatCompletion is the non-streaming response of /v1/chat/completions.
type ChatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object" example:"chat.completion"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// ChatDelta carries the incremental part of a streamed chat message.
type ChatDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChatChunkChoice is one choice within a streamed chat frame.
type ChatChunkChoice struct {
	Index        int       `json:"index"`
	Delta        ChatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

// ChatCompletionChunk is one SSE frame of a streamed chat completion.
type ChatCompletionChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object" example:"chat.completion.chunk"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []ChatChunkChoice `json:"choices"`
	Usage   *Usage            `json:"usage,omitempty"`
}

// InferRequest is the body of the NDJSON endpoint POST /infer.
type InferRequest struct {
	// example: commit-ngram
	Model string `json:"model,omitempty" example:"commit-ngram"`
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	SamplingParams
}

// InferToken is one NDJSON line carrying generated text.
type InferToken struct {
	// example: Hello
	Token string `json:"token" example:"Hello"`
}

// InferDone is the final NDJSON line of /infer.
type InferDone struct {
	// example: true
	Done bool `json:"done" example:"true"`
	// example: stop
	FinishReason string `json:"finish_reason" example:"stop"`
	Usage        Usage  `json:"usage"`
	// Set when generation failed after streaming started.
	Error *ErrorDetail `json:"error,omitempty"`
}

// ModelCard is one entry of GET /v1/models.
type ModelCard struct {
	// example: commit-ngram
	ID string `json:"id" example:"commit-ngram"`
	// example: model
	Object string `json:"object" example:"model"`
	// example: 1700000000
	Created int64 `json:"created" example:"1700000000"`
	// example: oxpilot
	OwnedBy string `json:"owned_by" example:"oxpilot"`
}

// ModelsResponse wraps the list of models returned by GET /v1/models.
type ModelsResponse struct {
	// example: list
	Object string      `json:"object" example:"list"`
	Data   []ModelCard `json:"data"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	// Error message.
	// example: invalid JSON body
	Message string `json:"message" example:"invalid JSON body"`
	// One of invalid_request_error, capacity_error, model_error, server_error.
	// example: invalid_request_error
	Type string `json:"type" example:"invalid_request_error"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall coordinator state (ready, draining, closed).
	// example: ready
	State string `json:"state" example:"ready"`
	// The served model.
	Model Model `json:"model"`
	// Requests waiting for the generation slot.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Requests currently generating (0 or 1).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum waiting requests before new ones are rejected.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Total requests admitted to the generation slot.
	// example: 120
	ServedTotal uint64 `json:"served_total" example:"120"`
	// Total requests rejected for capacity.
	// example: 3
	RejectedTotal uint64 `json:"rejected_total" example:"3"`
	// Failure message of the most recent failed generation.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
