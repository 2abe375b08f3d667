package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func makeTestServer(t *testing.T, statusCode int, body any) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, srv.Client()
}

// textResponse builds a chat response whose single choice is content.
func textResponse(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func TestComplete_Success(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, textResponse("5"))

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", 0, client)
	got, err := provider.Complete(context.Background(), "how many years?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "5" {
		t.Errorf("got %q, want 5", got)
	}
}

func TestComplete_HTTPError(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusInternalServerError, map[string]string{"error": "server error"})

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", 0, client)
	_, err := provider.Complete(context.Background(), "how many years?")
	if err == nil {
		t.Fatal("expected error on 5xx response")
	}
}

func TestComplete_RateLimited(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", 0, client)
	_, err := provider.Complete(context.Background(), "how many years?")
	if err == nil {
		t.Fatal("expected error on 429 response")
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, map[string]any{"choices": []any{}})

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", 0, client)
	_, err := provider.Complete(context.Background(), "how many years?")
	if err == nil {
		t.Fatal("expected error when LLM returns no choices")
	}
}

func TestComplete_APIErrorBody(t *testing.T) {
	srv, client := makeTestServer(t, http.StatusOK, map[string]any{
		"error": map[string]string{"message": "bad model", "type": "invalid_request_error"},
	})

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", 0, client)
	_, err := provider.Complete(context.Background(), "how many years?")
	if err == nil {
		t.Fatal("expected error when body carries an error object")
	}
}

func TestComplete_SetsAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textResponse("ok"))
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "my-secret-key", "test-model", 0, srv.Client())
	_, _ = provider.Complete(context.Background(), "hello")

	if gotAuth != "Bearer my-secret-key" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer my-secret-key")
	}
}

func TestComplete_SendsPlainUserPrompt(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textResponse("yes"))
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "key", "gpt-4o-mini", 0, srv.Client())
	if _, err := provider.Complete(context.Background(), "is a degree required?"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" || gotReq.Messages[0].Content != "is a degree required?" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
	if gotReq.Temperature != 0 {
		t.Errorf("temperature = %d, want 0", gotReq.Temperature)
	}
	if gotReq.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want %d", gotReq.MaxTokens, defaultMaxTokens)
	}
}

func TestComplete_HonoursMaxTokens(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textResponse("3"))
	}))
	defer srv.Close()

	p, err := NewProvider(context.Background(), ProviderConfig{
		Provider: ProviderOpenAI, BaseURL: srv.URL, APIKey: "key", Model: "m", MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if _, err := p.Complete(context.Background(), "how many years?"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotReq.MaxTokens != 256 {
		t.Errorf("max_tokens = %d, want 256", gotReq.MaxTokens)
	}
}
