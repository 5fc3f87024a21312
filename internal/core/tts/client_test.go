package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookwhisperer/config"
)

func speechServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Input)

		w.Header().Set("Content-Type", "audio/wav")
		fmt.Fprintf(w, "RIFF:%d:%d", calls, len(req.Input))
	})
	mux.HandleFunc("/voices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"name":"narrator"},{"name":"villain","language":"en"}]`)
	})
	return httptest.NewServer(mux), &calls
}

func TestSynthesize(t *testing.T) {
	srv, _ := speechServer(t)
	defer srv.Close()

	c := newWithBaseURL(srv.URL, 5*time.Second)
	audio, err := c.Synthesize(context.Background(), "Hello there.", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "RIFF:1:12", string(audio))
}

func TestSynthesizeEmptyText(t *testing.T) {
	c := newWithBaseURL("http://127.0.0.1:1", time.Second)
	_, err := c.Synthesize(context.Background(), "  \n ", DefaultOptions())
	require.Error(t, err)
}

func TestSynthesizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newWithBaseURL(srv.URL, time.Second)
	_, err := c.Synthesize(context.Background(), "text", DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestSynthesizeForwardsOptions(t *testing.T) {
	var got speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, "RIFF")
	}))
	defer srv.Close()

	opts := Options{Exaggeration: 0.5, CfgWeight: 0.2, Temperature: 0.7, Voice: "narrator", Language: "en"}
	c := newWithBaseURL(srv.URL, time.Second)
	_, err := c.Synthesize(context.Background(), "Some line.", opts)
	require.NoError(t, err)

	assert.Equal(t, "Some line.", got.Input)
	assert.Equal(t, 0.5, got.Exaggeration)
	assert.Equal(t, 0.2, got.CfgWeight)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, "narrator", got.Voice)
	assert.Equal(t, "en", got.Language)
}

func TestSynthesizeChapter(t *testing.T) {
	saved := config.Cfg.TTS
	defer func() { config.Cfg.TTS = saved }()
	config.Cfg.TTS.MaxChunkSize = 400

	srv, calls := speechServer(t)
	defer srv.Close()

	var text string
	for i := 0; i < 20; i++ {
		text += fmt.Sprintf("Sentence number %d flows naturally into the next one here. ", i)
	}

	c := newWithBaseURL(srv.URL, 5*time.Second)
	var progress []int
	segments, err := c.SynthesizeChapter(context.Background(), text, DefaultOptions(), func(completed, total int) {
		progress = append(progress, completed)
	})
	require.NoError(t, err)
	require.Greater(t, len(segments), 1)
	assert.Equal(t, len(segments), *calls)
	assert.Len(t, progress, len(segments))

	for i, seg := range segments {
		assert.Equal(t, i, seg.Index)
		assert.Equal(t, len(segments), seg.Total)
		assert.Equal(t, 0, seg.OverlapLen)
		assert.NotEmpty(t, seg.Output)
	}
}

func TestSynthesizeChapterEmpty(t *testing.T) {
	c := newWithBaseURL("http://127.0.0.1:1", time.Second)
	segments, err := c.SynthesizeChapter(context.Background(), "   ", DefaultOptions(), nil)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestVoices(t *testing.T) {
	srv, _ := speechServer(t)
	defer srv.Close()

	c := newWithBaseURL(srv.URL, time.Second)
	voices, err := c.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, "narrator", voices[0].Name)
	assert.Equal(t, "en", voices[1].Language)
}

func TestHealth(t *testing.T) {
	srv, _ := speechServer(t)
	defer srv.Close()

	c := newWithBaseURL(srv.URL, time.Second)
	require.NoError(t, c.Health(context.Background()))

	srv.Close()
	require.Error(t, c.Health(context.Background()))
}
