package gemini

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"

	"github.com/spigell/stack-advisor/internal/ai"
)

type generateCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeModels struct {
	mu      sync.Mutex
	calls   []generateCall
	queue   []fakeResponse
	listing []*genai.Model
	listErr error
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, generateCall{model: model, contents: contents, config: config})
	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	return res.resp, res.err
}

func (f *fakeModels) All(context.Context) iter.Seq2[*genai.Model, error] {
	return func(yield func(*genai.Model, error) bool) {
		if f.listErr != nil {
			yield(nil, f.listErr)
			return
		}
		for _, m := range f.listing {
			if !yield(m, nil) {
				return
			}
		}
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	original := sleep
	sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleep = original })
	return &delays
}

var history = []ai.Message{
	{Role: ai.RoleUser, Content: "I am building a blog"},
	{Role: ai.RoleAssistant, Content: `{"text":"What is your experience?"}`},
	{Role: ai.RoleUser, Content: "Beginner"},
}

func TestGeneratorReplySendsHistory(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(textResponse(`  {"text":"ok"}  `), nil)

	g := newGenerator(fake, Config{Model: "gemini-pro"}, zap.NewNop())

	out, err := g.Reply(context.Background(), history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"text":"ok"}` {
		t.Fatalf("unexpected output: %q", out)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fake.calls))
	}

	call := fake.calls[0]
	if call.model != "gemini-pro" {
		t.Fatalf("unexpected model: %s", call.model)
	}

	wantRoles := []string{string(genai.RoleUser), string(genai.RoleModel), string(genai.RoleUser)}
	if len(call.contents) != len(wantRoles) {
		t.Fatalf("expected %d contents, got %d", len(wantRoles), len(call.contents))
	}
	for i, content := range call.contents {
		if content.Role != wantRoles[i] {
			t.Fatalf("content #%d: expected role %s, got %s", i, wantRoles[i], content.Role)
		}
		if content.Parts[0].Text != history[i].Content {
			t.Fatalf("content #%d: unexpected text %q", i, content.Parts[0].Text)
		}
	}

	if call.config == nil || call.config.SystemInstruction == nil {
		t.Fatalf("expected system instruction to be set")
	}
	if !strings.Contains(call.config.SystemInstruction.Parts[0].Text, "senior software architect") {
		t.Fatalf("unexpected system instruction")
	}
	if call.config.ResponseMIMEType != "application/json" || call.config.MaxOutputTokens != 2000 {
		t.Fatalf("unexpected generation config: %+v", call.config)
	}
}

func TestGeneratorDefaultsModel(t *testing.T) {
	g := newGenerator(&fakeModels{}, Config{}, nil)
	if g.Model() != ai.DefaultModel(ai.ProviderGemini) {
		t.Fatalf("unexpected default model: %s", g.Model())
	}
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	delays := noSleep(t)

	core, logs := observer.New(zapcore.WarnLevel)

	fake := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	fake.enqueue(nil, tempErr)
	fake.enqueue(textResponse("retry ok"), nil)

	g := newGenerator(fake, Config{Model: "gemini-pro", MaxRetries: 2}, zap.New(core))

	output, err := g.Reply(context.Background(), history)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(fake.calls))
	}
	if len(*delays) != 1 || (*delays)[0] != baseRetryDelay {
		t.Fatalf("unexpected delays: %v", *delays)
	}

	entries := logs.FilterMessage("gemini request failed, retrying").All()
	if len(entries) != 1 {
		t.Fatalf("expected a retry warning, got %d", len(entries))
	}
	if entries[0].ContextMap()["ai_model"] != "gemini-pro" {
		t.Fatalf("expected model field on retry log: %v", entries[0].ContextMap())
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	noSleep(t)

	fake := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	fake.enqueue(nil, tempErr)
	fake.enqueue(nil, tempErr)

	g := newGenerator(fake, Config{Model: "gemini-pro", MaxRetries: 2}, zap.NewNop())

	_, err := g.Reply(context.Background(), history)
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(fake.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	noSleep(t)

	fake := &fakeModels{}
	fake.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	g := newGenerator(fake, Config{Model: "gemini-pro", MaxRetries: 3}, zap.NewNop())

	if _, err := g.Reply(context.Background(), history); err == nil {
		t.Fatal("expected error when quota delay too long")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(fake.calls))
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Message: "API key not valid"})

	g := newGenerator(fake, Config{MaxRetries: 3}, zap.NewNop())

	if _, err := g.Reply(context.Background(), history); err == nil {
		t.Fatal("expected error")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(fake.calls))
	}
}

func TestGeneratorRejectsEmptyInput(t *testing.T) {
	fake := &fakeModels{}
	fake.enqueue(&genai.GenerateContentResponse{}, nil)
	g := newGenerator(fake, Config{}, zap.NewNop())

	if _, err := g.Reply(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty history")
	}

	if _, err := g.Reply(context.Background(), history); !errors.Is(err, ai.ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		attempt int
		delay   time.Duration
		retry   bool
	}{
		{name: "plain error", err: errors.New("boom")},
		{name: "bad request", err: genai.APIError{Code: 400}},
		{name: "server error backoff", err: genai.APIError{Code: 500}, attempt: 2, delay: 8 * time.Second, retry: true},
		{name: "backoff capped", err: genai.APIError{Code: 502}, attempt: 10, delay: maxRetryDelay, retry: true},
		{name: "short quota delay", err: genai.APIError{Code: 429, Message: "Please retry in 1.5s."}, delay: 1500 * time.Millisecond, retry: true},
		{name: "long quota delay", err: genai.APIError{Code: 429, Message: "retry after 45 seconds"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delay, retry := retryDelay(tc.err, tc.attempt)
			if retry != tc.retry || delay != tc.delay {
				t.Fatalf("expected (%v, %v), got (%v, %v)", tc.delay, tc.retry, delay, retry)
			}
		})
	}
}

func TestListModels(t *testing.T) {
	fake := &fakeModels{listing: []*genai.Model{
		{Name: "models/gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", SupportedActions: []string{"generateContent", "countTokens"}},
		{Name: "models/embedding-001", SupportedActions: []string{"embedContent"}},
		{Name: "models/gemini-embedding", SupportedActions: []string{"embedContent"}},
		{Name: "models/gemini-2.0-flash", SupportedActions: []string{"generateContent"}},
	}}

	g := newGenerator(fake, Config{}, zap.NewNop())

	models, err := g.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []ai.Model{
		{ID: "gemini-2.0-flash", Name: "gemini-2.0-flash"},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro"},
	}
	if len(models) != len(want) {
		t.Fatalf("unexpected models: %+v", models)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Fatalf("model #%d: expected %+v, got %+v", i, want[i], models[i])
		}
	}

	failing := newGenerator(&fakeModels{listErr: errors.New("forbidden")}, Config{}, zap.NewNop())
	models, err = failing.ListModels(context.Background())
	if err != nil || len(models) != len(ai.DefaultModels(ai.ProviderGemini)) {
		t.Fatalf("expected default models on failure, got %+v, %v", models, err)
	}
}
