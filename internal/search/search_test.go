package search_test

import (
	"testing"

	"github.com/btwd/btwd/internal/search"
	"github.com/stretchr/testify/require"
)

func TestResultZeroValueIsUsable(t *testing.T) {
	var r search.Result
	require.Empty(t, r.Title)
	require.Empty(t, r.URL)
}
