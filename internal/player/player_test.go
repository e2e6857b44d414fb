package player_test

import (
	"testing"

	"github.com/btwd/btwd/internal/player"
	"github.com/stretchr/testify/require"
)

func TestNewFailsWhenNoCandidateIsOnPath(t *testing.T) {
	_, err := player.New([]string{"definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
}

func TestNewResolvesFirstAvailableCandidate(t *testing.T) {
	// "sh" is present on every POSIX system this would run on.
	p, err := player.New([]string{"definitely-not-a-real-binary-xyz", "sh"})
	require.NoError(t, err)
	require.Contains(t, p.Resolved(), "sh")
}
