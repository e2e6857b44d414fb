package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleResultsPage = `
<html><body>
<div class="result">
  <a class="result__a" href="https://example.com/a">Example A</a>
  <a class="result__snippet">This is the first snippet.</a>
</div>
<div class="result">
  <a class="result__a" href="/l/?uddg=internal">Internal redirect, should be skipped</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/b">Example B</a>
  <a class="result__snippet">This is the second snippet.</a>
</div>
</body></html>
`

func TestSearchParsesResultsAndSkipsInternalLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResultsPage))
	}))
	defer srv.Close()

	original := searchURL
	searchURL = srv.URL
	defer func() { searchURL = original }()

	c := New(Config{MaxResults: 10})
	results, err := c.Search(context.Background(), "example query")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Example A", results[0].Title)
	require.Equal(t, "https://example.com/a", results[0].URL)
	require.Equal(t, "This is the first snippet.", results[0].Snippet)
}

func TestSearchRespectsMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResultsPage))
	}))
	defer srv.Close()

	original := searchURL
	searchURL = srv.URL
	defer func() { searchURL = original }()

	c := New(Config{MaxResults: 1})
	results, err := c.Search(context.Background(), "example query")
	require.NoError(t, err)
	require.Len(t, results, 1)
}
