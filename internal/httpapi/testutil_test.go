package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"oxpilot/internal/generate"
	"oxpilot/internal/model"
	"oxpilot/internal/sampler"
	"oxpilot/internal/tokenizer"
	"oxpilot/pkg/types"
)

var errBroken = errors.New("broken weights")

// scriptModel emits the bytes of text followed by EOS, one token per step.
type scriptModel struct {
	ids    []int
	failAt int
}

func newScript(text string, failAt int) *scriptModel {
	ids := []int(nil)
	for i := 0; i < len(text); i++ {
		ids = append(ids, int(text[i]))
	}
	ids = append(ids, tokenizer.NewBytes().EOS())
	return &scriptModel{ids: ids, failAt: failAt}
}

func (m *scriptModel) Info() model.Info {
	return model.Info{Name: "script", Backend: "script", VocabSize: 258, ContextLength: 512}
}
func (m *scriptModel) NewSession() (model.Session, error) { return &scriptSession{m: m}, nil }
func (m *scriptModel) Close() error                       { return nil }

type scriptSession struct {
	m     *scriptModel
	calls int
}

func (s *scriptSession) Step(ctx context.Context, tokens []int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.calls == s.m.failAt {
		return nil, errBroken
	}
	id := s.m.ids[min(s.calls, len(s.m.ids)-1)]
	s.calls++
	logits := make([]float32, 258)
	logits[id] = 10
	return logits, nil
}
func (s *scriptSession) Position() int { return s.calls }
func (s *scriptSession) Close() error  { return nil }

// mockService runs real generation over a scripted model.
type mockService struct {
	gen      *generate.Generator
	models   []types.Model
	status   types.StatusResponse
	ready    bool
	beginErr error
	// block makes Begin wait for its context, like a request stuck in the queue
	block bool

	mu      sync.Mutex
	lastReq generate.Request
}

func newService(t *testing.T, text string, failAt int) *mockService {
	t.Helper()
	prevSampling, prevMax := defaultSampling, defaultMaxTokens
	t.Cleanup(func() { SetDefaults(prevSampling, prevMax) })
	SetDefaults(sampler.Config{Temperature: 0, TopP: 1, RepetitionPenalty: 1}, 0)
	return &mockService{
		gen:    generate.New(tokenizer.NewBytes(), newScript(text, failAt), generate.Options{}),
		models: []types.Model{{ID: "m1"}},
		ready:  true,
	}
}

func (m *mockService) Begin(ctx context.Context, req generate.Request) (*generate.Stream, error) {
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	p, err := m.gen.Prepare(req)
	if err != nil {
		return nil, err
	}
	return p.Start(ctx)
}

func (m *mockService) ListModels() []types.Model    { return append([]types.Model(nil), m.models...) }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// sseData returns the data payloads of an event stream body.
func sseData(t *testing.T, body []byte) []string {
	t.Helper()
	var out []string
	for ev := range strings.SplitSeq(string(body), "\n\n") {
		if ev == "" {
			continue
		}
		d, ok := strings.CutPrefix(ev, "data: ")
		if !ok {
			t.Fatalf("malformed event %q", ev)
		}
		out = append(out, d)
	}
	return out
}

func ndjsonLines(body []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}
