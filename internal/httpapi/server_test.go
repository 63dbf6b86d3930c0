package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"oxpilot/internal/manager"
	"oxpilot/pkg/types"
)

func TestModelsHandler(t *testing.T) {
	svc := newService(t, "x", -1)
	svc.models = []types.Model{{ID: "m1"}, {ID: "m2"}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Object != "list" || len(body.Data) != 2 || body.Data[1].ID != "m2" || body.Data[0].OwnedBy != "oxpilot" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := newService(t, "x", -1)
	svc.status = types.StatusResponse{State: "ready", MaxQueueDepth: 7}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.MaxQueueDepth != 7 || body.State != "ready" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthAndReady(t *testing.T) {
	svc := newService(t, "x", -1)
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz status=%d body=%q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing nosniff header: %q", got)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", w.Code)
	}
	svc.ready = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz not ready status=%d", w.Code)
	}
}

func TestCompletions_NonStreaming(t *testing.T) {
	svc := newService(t, "hello", -1)
	w := postJSON(t, NewMux(svc), "/v1/completions", `{"prompt":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.Completion
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Object != "text_completion" || body.Model != "m1" || !strings.HasPrefix(body.ID, "cmpl-") {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if len(body.Choices) != 1 || body.Choices[0].Text != "hello" || *body.Choices[0].FinishReason != "stop" {
		t.Fatalf("unexpected choices: %+v", body.Choices)
	}
	if u := body.Usage; u == nil || u.PromptTokens != 2 || u.CompletionTokens != 5 || u.TotalTokens != 7 {
		t.Fatalf("unexpected usage: %+v", body.Usage)
	}
}

func TestCompletions_Streaming(t *testing.T) {
	svc := newService(t, "hey", -1)
	w := postJSON(t, NewMux(svc), "/v1/completions", `{"prompt":"","stream":true,"model":"mine"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%s", ct)
	}
	events := sseData(t, w.Body.Bytes())
	if len(events) < 2 || events[len(events)-1] != "[DONE]" {
		t.Fatalf("stream must end with [DONE]: %q", events)
	}
	var text strings.Builder
	var final types.Completion
	for _, ev := range events[:len(events)-1] {
		var c types.Completion
		if err := json.Unmarshal([]byte(ev), &c); err != nil {
			t.Fatalf("frame %q: %v", ev, err)
		}
		if c.Model != "mine" {
			t.Fatalf("model=%q", c.Model)
		}
		text.WriteString(c.Choices[0].Text)
		final = c
	}
	if text.String() != "hey" {
		t.Fatalf("text=%q", text.String())
	}
	if final.Choices[0].FinishReason == nil || *final.Choices[0].FinishReason != "stop" || final.Usage == nil {
		t.Fatalf("last frame should carry finish reason and usage: %+v", final)
	}
}

func TestCompletions_EngineRoute(t *testing.T) {
	svc := newService(t, "ok", -1)
	w := postJSON(t, NewMux(svc), "/v1/engines/davinci/completions", `{"prompt":"x","max_tokens":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.Completion
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Choices[0].Text != "o" || *body.Choices[0].FinishReason != "length" {
		t.Fatalf("unexpected choice: %+v", body.Choices[0])
	}
}

func TestCompletions_SamplingOverlay(t *testing.T) {
	svc := newService(t, "ok", -1)
	w := postJSON(t, NewMux(svc), "/v1/completions", `{"prompt":"x","temperature":0.5,"seed":7,"stop":"\n\n","max_tokens":9}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	req := svc.lastReq
	if req.Sampling.Temperature != 0.5 || req.Sampling.Seed != 7 || req.Sampling.TopP != 1 {
		t.Fatalf("unexpected sampling: %+v", req.Sampling)
	}
	if req.MaxTokens != 9 || !slices.Equal(req.Stop, []string{"\n\n"}) {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestCompletions_StopSequenceWithheld(t *testing.T) {
	svc := newService(t, "line one\n\nline two", -1)
	w := postJSON(t, NewMux(svc), "/v1/completions", `{"prompt":"x","stop":["\n\n"]}`)
	var body types.Completion
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Choices[0].Text != "line one" || *body.Choices[0].FinishReason != "stop" {
		t.Fatalf("unexpected choice: %+v", body.Choices[0])
	}
}

func TestCompletions_RequestErrors(t *testing.T) {
	svc := newService(t, "ok", -1)
	r := NewMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/completions", strings.NewReader(`{"prompt":"x"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("missing content type: status=%d", w.Code)
	}

	cases := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"bad json", `{"prompt":`, http.StatusBadRequest, "invalid_request_error"},
		{"negative temperature", `{"prompt":"x","temperature":-1}`, http.StatusBadRequest, "invalid_request_error"},
		{"top_p zero", `{"prompt":"x","top_p":0}`, http.StatusBadRequest, "invalid_request_error"},
		{"negative max tokens", `{"prompt":"x","max_tokens":-3}`, http.StatusBadRequest, "invalid_request_error"},
		{"empty stop", `{"prompt":"x","stop":[""]}`, http.StatusBadRequest, "invalid_request_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, r, "/v1/completions", tc.body)
			if w.Code != tc.status {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
			var body types.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body.Error.Type != tc.kind || body.Error.Code != tc.status || body.Error.Message == "" {
				t.Fatalf("unexpected error body: %+v", body)
			}
		})
	}
}

func TestCompletions_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"capacity", manager.CapacityError{Reason: "queue_full"}, http.StatusTooManyRequests},
		{"unavailable", mockHTTPError{msg: "no model loaded", code: http.StatusServiceUnavailable}, http.StatusServiceUnavailable},
		{"plain", errBroken, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(t, "ok", -1)
			svc.beginErr = tc.err
			w := postJSON(t, NewMux(svc), "/v1/completions", `{"prompt":"x","stream":true}`)
			if w.Code != tc.status {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
				t.Fatalf("errors are JSON even for stream requests, got %s", ct)
			}
			if tc.status == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
				t.Fatalf("429 should carry Retry-After")
			}
		})
	}
}

func TestCompletions_FirstStepFailureIs500(t *testing.T) {
	svc := newService(t, "ok", 0)
	w := postJSON(t, NewMux(svc), "/v1/completions", `{"prompt":"x","stream":true}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Error.Type != "model_error" || !strings.Contains(body.Error.Message, "broken weights") {
		t.Fatalf("unexpected error: %+v", body.Error)
	}
}

func TestCompletions_MidStreamFailureFrame(t *testing.T) {
	svc := newService(t, "abc", 2)
	w := postJSON(t, NewMux(svc), "/v1/completions", `{"prompt":"x","stream":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	events := sseData(t, w.Body.Bytes())
	if len(events) != 4 || events[3] != "[DONE]" {
		t.Fatalf("expected two chunks, an error frame and [DONE]: %q", events)
	}
	var frame types.ErrorResponse
	if err := json.Unmarshal([]byte(events[2]), &frame); err != nil {
		t.Fatalf("json: %v", err)
	}
	if frame.Error.Type != "model_error" || frame.Error.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected error frame: %+v", frame)
	}
}

func TestCompletions_NonStreamingFailureIs500(t *testing.T) {
	svc := newService(t, "abc", 1)
	w := postJSON(t, NewMux(svc), "/v1/completions", `{"prompt":"x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestCompletions_InferTimeout(t *testing.T) {
	svc := newService(t, "ok", -1)
	svc.block = true
	SetInferTimeout(20 * time.Millisecond)
	t.Cleanup(func() { SetInferTimeout(0) })
	w := postJSON(t, NewMux(svc), "/v1/completions", `{"prompt":"x"}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestChatCompletions_NonStreaming(t *testing.T) {
	// the mistral template stops at </s>
	svc := newService(t, "fix: typo</s>[INST] more", -1)
	w := postJSON(t, NewMux(svc), "/v1/chat/completions",
		`{"messages":[{"role":"system","content":"be brief"},{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.ChatCompletion
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Object != "chat.completion" || !strings.HasPrefix(body.ID, "chatcmpl-") {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	msg := body.Choices[0].Message
	if msg.Role != "assistant" || msg.Content != "fix: typo" || *body.Choices[0].FinishReason != "stop" {
		t.Fatalf("unexpected choice: %+v", body.Choices[0])
	}
	if got := svc.lastReq.Prompt; got != "<s>[INST] be brief\n\nhi [/INST] " {
		t.Fatalf("prompt=%q", got)
	}
	if !slices.Contains(svc.lastReq.Stop, "</s>") {
		t.Fatalf("template stops missing: %q", svc.lastReq.Stop)
	}
}

func TestChatCompletions_Streaming(t *testing.T) {
	svc := newService(t, "ok", -1)
	w := postJSON(t, NewMux(svc), "/v1/chat/completions", `{"stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	events := sseData(t, w.Body.Bytes())
	if len(events) != 4 || events[3] != "[DONE]" {
		t.Fatalf("unexpected events: %q", events)
	}
	var first, second types.ChatCompletionChunk
	if err := json.Unmarshal([]byte(events[0]), &first); err != nil {
		t.Fatalf("json: %v", err)
	}
	if err := json.Unmarshal([]byte(events[1]), &second); err != nil {
		t.Fatalf("json: %v", err)
	}
	if first.Choices[0].Delta.Role != "assistant" || second.Choices[0].Delta.Role != "" {
		t.Fatalf("only the first chunk carries the role: %+v %+v", first, second)
	}
	if first.Choices[0].Delta.Content+second.Choices[0].Delta.Content != "ok" {
		t.Fatalf("unexpected content")
	}
}

func TestChatCompletions_InvalidMessages(t *testing.T) {
	svc := newService(t, "ok", -1)
	r := NewMux(svc)
	for _, body := range []string{`{"messages":[]}`, `{"messages":[{"role":"tool","content":"x"}]}`} {
		w := postJSON(t, r, "/v1/chat/completions", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", body, w.Code)
		}
	}
}

func TestInfer_NDJSON(t *testing.T) {
	svc := newService(t, "a<b", -1)
	w := postJSON(t, NewMux(svc), "/infer", `{"prompt":"x"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content-type=%s", ct)
	}
	lines := ndjsonLines(w.Body.Bytes())
	if len(lines) != 4 || lines[1] != `{"token":"<"}` {
		t.Fatalf("unexpected lines: %q", lines)
	}
	var done types.InferDone
	if err := json.Unmarshal([]byte(lines[3]), &done); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !done.Done || done.FinishReason != "stop" || done.Usage.CompletionTokens != 3 || done.Error != nil {
		t.Fatalf("unexpected done line: %+v", done)
	}
}

func TestInfer_DebugLogsLines(t *testing.T) {
	buf := captureLog(t)
	svc := newService(t, "a", -1)
	w := postJSON(t, NewMux(svc), "/infer?log=debug", `{"prompt":"x"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	out := buf.String()
	if !strings.Contains(out, `"line":{"token":"a"}`) || !strings.Contains(out, "infer start") {
		t.Fatalf("expected NDJSON lines in the debug log: %q", out)
	}
}

func TestCORS_OptIn(t *testing.T) {
	svc := newService(t, "ok", -1)
	SetCORSOptions(true, []string{"http://app.local"}, []string{"GET", "POST"}, []string{"Content-Type"})
	t.Cleanup(func() { SetCORSOptions(false, nil, nil, nil) })
	req := httptest.NewRequest(http.MethodOptions, "/v1/completions", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://app.local" {
		t.Fatalf("allow-origin=%q", got)
	}
}

func TestHugeMaxTokensKeepsSlotUsable(t *testing.T) {
	svc := newService(t, "ok", -1)
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Generator:    svc.gen,
		Model:        types.Model{ID: "m1"},
		MaxWait:      50 * time.Millisecond,
		DrainTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = mgr.Close() })
	h := NewMux(mgr)

	w := postJSON(t, h, "/v1/completions", `{"prompt":"hi","max_tokens":9223372036854775807}`)
	if w.Code != http.StatusOK {
		t.Fatalf("huge max_tokens: status=%d body=%s", w.Code, w.Body.String())
	}
	var c types.Completion
	if err := json.Unmarshal(w.Body.Bytes(), &c); err != nil {
		t.Fatalf("json: %v", err)
	}
	if c.Choices[0].Text != "ok" {
		t.Fatalf("text=%q", c.Choices[0].Text)
	}

	w = postJSON(t, h, "/v1/completions", `{"prompt":"hi","max_tokens":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("follow-up request: status=%d body=%s", w.Code, w.Body.String())
	}
	if st := mgr.Status(); st.Inflight != 0 {
		t.Fatalf("inflight=%d after both requests", st.Inflight)
	}
}
