package tts_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btwd/btwd/internal/tts"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer a-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.Contains(t, string(body), "hello there")
		_, _ = w.Write([]byte("RIFF-fake-wav-bytes"))
	}))
	defer srv.Close()

	c := tts.New(tts.Config{Endpoint: srv.URL, APIKey: "a-key", Voice: "default"})
	out, err := c.Synthesize(context.Background(), "hello there")
	require.NoError(t, err)
	require.Equal(t, []byte("RIFF-fake-wav-bytes"), out)
}

func TestSynthesizeNonOKIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := tts.New(tts.Config{Endpoint: srv.URL, APIKey: "a-key"})
	_, err := c.Synthesize(context.Background(), "hello")
	require.Error(t, err)
}
