package asr_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btwd/btwd/internal/asr"
	"github.com/stretchr/testify/require"
)

func TestTranscribeReturnsTrimmedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"text":"  turn on the lights  "}`))
	}))
	defer srv.Close()

	c := asr.New(asr.Config{Endpoint: srv.URL, APIKey: "test-key"})
	text, err := c.Transcribe(context.Background(), []byte("fake-wav-bytes"))
	require.NoError(t, err)
	require.Equal(t, "turn on the lights", text)
}

func TestTranscribeEmptyTextIsNoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"   "}`))
	}))
	defer srv.Close()

	c := asr.New(asr.Config{Endpoint: srv.URL, APIKey: "test-key"})
	_, err := c.Transcribe(context.Background(), []byte("fake-wav-bytes"))
	require.ErrorIs(t, err, asr.ErrNoSpeech)
}

func TestTranscribeNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad credential"))
	}))
	defer srv.Close()

	c := asr.New(asr.Config{Endpoint: srv.URL, APIKey: "wrong-key"})
	_, err := c.Transcribe(context.Background(), []byte("fake-wav-bytes"))
	require.Error(t, err)
}
