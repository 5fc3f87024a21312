package format

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookwhisperer/config"
)

// chatEcho serves an OpenAI-compatible /chat/completions that hands the user
// text back unchanged, plus a /models listing.
func chatEcho(t *testing.T, models ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		text := strings.TrimPrefix(req.Messages[1].Content, "Text to format:\n")
		text = strings.TrimSuffix(text, "\n\nFormatted text:")

		var resp chatResponse
		resp.Choices = make([]chatChoice, 1)
		resp.Choices[0].Message.Role = "assistant"
		resp.Choices[0].Message.Content = text
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		var resp modelsResponse
		for _, m := range models {
			resp.Data = append(resp.Data, struct {
				ID string `json:"id"`
			}{ID: m})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	return httptest.NewServer(mux)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestFormatTextBlankPassesThrough(t *testing.T) {
	f := newWithBaseURL("http://127.0.0.1:1", "")
	out, err := f.FormatText(context.Background(), "   \n ")
	require.NoError(t, err)
	assert.Equal(t, "   \n ", out)
}

func TestFormatText(t *testing.T) {
	srv := chatEcho(t)
	defer srv.Close()

	f := newWithBaseURL(srv.URL, "test")
	out, err := f.FormatText(context.Background(), "  some raw manuscript text.  ")
	require.NoError(t, err)
	assert.Equal(t, "some raw manuscript text.", out)
}

func TestFormatTextNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	f := newWithBaseURL(srv.URL, "test")
	_, err := f.FormatText(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestFormatChapter(t *testing.T) {
	saved := config.Cfg.Chunking
	defer func() { config.Cfg.Chunking = saved }()
	config.Cfg.Chunking.LLMMaxChars = 500
	config.Cfg.Chunking.LLMOverlap = 50

	srv := chatEcho(t)
	defer srv.Close()

	var raw strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&raw, "Chapter sentence number %d keeps the narrative moving along nicely. ", i)
	}

	f := newWithBaseURL(srv.URL, "test")
	var progress []int
	result, err := f.FormatChapter(context.Background(), raw.String(), func(completed, total int) {
		progress = append(progress, completed)
	})
	require.NoError(t, err)

	assert.Greater(t, result.ChunkCount, 1)
	assert.False(t, result.Degraded)
	assert.Len(t, progress, result.ChunkCount)
	// The echo transform only trims chunk edges, so the merged text matches
	// the source up to whitespace.
	assert.Equal(t, collapseSpace(raw.String()), collapseSpace(result.Text))
}

func TestFormatChapterEmpty(t *testing.T) {
	f := newWithBaseURL("http://127.0.0.1:1", "")
	result, err := f.FormatChapter(context.Background(), "   ", nil)
	require.NoError(t, err)
	assert.Equal(t, "", result.Text)
	assert.Equal(t, 0, result.ChunkCount)
}

func TestHealth(t *testing.T) {
	srv := chatEcho(t, "other-model", config.Cfg.LLM.Model)
	defer srv.Close()

	f := newWithBaseURL(srv.URL, "test")
	require.NoError(t, f.Health(context.Background()))
}

func TestHealthModelMissing(t *testing.T) {
	srv := chatEcho(t, "other-model")
	defer srv.Close()

	f := newWithBaseURL(srv.URL, "test")
	err := f.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not served")
}
