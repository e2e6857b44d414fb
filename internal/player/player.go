// Package player plays a WAV byte buffer through the first available
// external player binary, replacing the teacher's native malgo playback
// device: TTS audio in this daemon is produced by a cloud provider, so
// playback is delegated to whatever the host already has installed.
package player

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// DefaultCandidates is the ordered fallback list from spec.md §6.
var DefaultCandidates = []string{"pw-play", "aplay", "ffplay"}

// Player spawns the first resolvable binary from Candidates and pipes a
// WAV buffer to its stdin, waiting for playback to finish.
type Player struct {
	candidates []string
	resolved   string
}

// New resolves the first available player binary on PATH. Candidates
// defaults to DefaultCandidates when nil.
func New(candidates []string) (*Player, error) {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return &Player{candidates: candidates, resolved: path}, nil
		}
	}
	return nil, fmt.Errorf("player: none of %v found on PATH", candidates)
}

// argsFor returns the invocation for the resolved binary. ffplay needs
// flags to run headless and exit after playback; the others play stdin
// by default.
func (p *Player) argsFor() []string {
	switch {
	case containsSuffix(p.resolved, "ffplay"):
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-"}
	default:
		return nil
	}
}

func containsSuffix(path, name string) bool {
	n := len(name)
	return len(path) >= n && path[len(path)-n:] == name
}

// Play blocks until the resolved player exits.
func (p *Player) Play(ctx context.Context, wavBytes []byte) error {
	cmd := exec.CommandContext(ctx, p.resolved, p.argsFor()...)
	cmd.Stdin = bytes.NewReader(wavBytes)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("player: %s failed: %w", p.resolved, err)
	}
	return nil
}

// Resolved returns the absolute path of the chosen player binary.
func (p *Player) Resolved() string {
	return p.resolved
}
