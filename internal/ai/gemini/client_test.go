package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeCall struct {
	model       string
	contents    []*genai.Content
	config      *genai.GenerateContentConfig
	embedConfig *genai.EmbedContentConfig
}

type fakeModels struct {
	mu         sync.Mutex
	calls      []fakeCall
	genQueue   []generateResult
	embedQueue []embedResult
}

type generateResult struct {
	resp *genai.GenerateContentResponse
	err  error
}

type embedResult struct {
	resp *genai.EmbedContentResponse
	err  error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{model: model, contents: contents, config: config})
	if len(f.genQueue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.genQueue[0]
	f.genQueue = f.genQueue[1:]
	return res.resp, res.err
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{model: model, contents: contents, embedConfig: config})
	if len(f.embedQueue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.embedQueue[0]
	f.embedQueue = f.embedQueue[1:]
	return res.resp, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func noSleep(t *testing.T) {
	t.Helper()
	original := sleep
	sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleep = original })
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	noSleep(t)

	models := &fakeModels{genQueue: []generateResult{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{resp: textResponse("retry ok")},
	}}

	g := &Generator{models: models, model: "gemini-pro", maxRetries: 2, logger: zap.NewNop()}

	output, err := g.GenerateContent(context.Background(), "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	noSleep(t)

	unavailable := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models := &fakeModels{genQueue: []generateResult{{err: unavailable}, {err: unavailable}}}

	g := &Generator{models: models, model: "gemini-pro", maxRetries: 2, logger: zap.NewNop()}

	_, err := g.GenerateContent(context.Background(), "msg")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected wrapped api error, got %v", err)
	}

	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	models := &fakeModels{genQueue: []generateResult{{err: genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}}}}

	g := &Generator{models: models, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "msg"); err == nil {
		t.Fatal("expected error when quota delay too long")
	}

	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	models := &fakeModels{genQueue: []generateResult{{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}}}}

	g := &Generator{models: models, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "msg"); err == nil {
		t.Fatal("expected error")
	}

	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestGeneratorJSONModeAndEmptyAnswer(t *testing.T) {
	models := &fakeModels{genQueue: []generateResult{{resp: textResponse("   ")}}}

	g := (&Generator{models: models, model: "gemini-pro", maxRetries: 1, logger: zap.NewNop()}).JSON()

	if _, err := g.GenerateContent(context.Background(), "msg"); err == nil {
		t.Fatal("expected error on empty answer")
	}

	cfg := models.calls[0].config
	if cfg == nil || cfg.ResponseMIMEType != "application/json" {
		t.Fatalf("expected json response mime type, got %+v", cfg)
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		retry bool
		delay time.Duration
	}{
		{name: "plain error", err: errors.New("boom")},
		{name: "cancelled", err: context.Canceled},
		{name: "internal", err: genai.APIError{Code: 500}, retry: true, delay: baseRetryDelay},
		{name: "unavailable status", err: genai.APIError{Code: 0, Status: "UNAVAILABLE"}, retry: true, delay: baseRetryDelay},
		{
			name:  "short quota delay in details",
			err:   genai.APIError{Code: 429, Details: []map[string]any{{"retryDelay": "5s"}}},
			retry: true,
			delay: 5 * time.Second,
		},
		{
			name: "long quota delay in details",
			err:  genai.APIError{Code: 429, Details: []map[string]any{{"retryDelay": "45s"}}},
		},
		{name: "quota without delay", err: genai.APIError{Status: "RESOURCE_EXHAUSTED"}, retry: true, delay: baseRetryDelay},
		{name: "not found", err: genai.APIError{Code: 404}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			delay, retry := retryDelay(tt.err, 0)
			if retry != tt.retry {
				t.Fatalf("expected retry=%v, got %v", tt.retry, retry)
			}
			if retry && delay != tt.delay {
				t.Fatalf("expected delay %s, got %s", tt.delay, delay)
			}
		})
	}
}
