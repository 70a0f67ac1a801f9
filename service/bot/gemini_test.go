package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChitChat/service/chat"
)

func geminiReply(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + mustJSON(text) + `}]}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGenerateSuccess(t *testing.T) {
	var gotBody generateRequest
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = io.WriteString(w, geminiReply("  hello from the model  "))
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "test-key", Model: "gemini-1.5-flash", BaseURL: srv.URL})
	history := []chat.HistoryEntry{
		{Role: chat.RoleUser, Text: "hi"},
		{Role: chat.RoleBot, Text: "hello"},
	}
	reply := g.Generate(context.Background(), "how are you", history)

	assert.Equal(t, "hello from the model", reply, "whitespace trimmed")
	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", gotPath)

	// history maps to user/model roles, prompt appended last as user
	require.Len(t, gotBody.Contents, 3)
	assert.Equal(t, "user", gotBody.Contents[0].Role)
	assert.Equal(t, "hi", gotBody.Contents[0].Parts[0].Text)
	assert.Equal(t, "model", gotBody.Contents[1].Role)
	assert.Equal(t, "user", gotBody.Contents[2].Role)
	assert.Equal(t, "how are you", gotBody.Contents[2].Parts[0].Text)
}

func TestGenerateNoAPIKey(t *testing.T) {
	g := NewGemini(GeminiConfig{Model: "gemini-1.5-flash"})
	assert.Equal(t, "", g.Generate(context.Background(), "hi", nil))
}

func TestGenerateBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	assert.Equal(t, "", g.Generate(context.Background(), "hi", nil))
}

func TestGenerateMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":`)
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	assert.Equal(t, "", g.Generate(context.Background(), "hi", nil))
}

func TestGenerateNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	assert.Equal(t, "", g.Generate(context.Background(), "hi", nil))
}

func TestGenerateServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // closed before use

	g := NewGemini(GeminiConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})
	assert.Equal(t, "", g.Generate(context.Background(), "hi", nil))
}
