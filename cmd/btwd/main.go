// btwd is a long-running user-session daemon that turns spoken
// utterances into either an allow-listed command execution or a short
// spoken/displayed factual answer.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/btwd/btwd/internal/answer"
	"github.com/btwd/btwd/internal/asr"
	"github.com/btwd/btwd/internal/audio"
	"github.com/btwd/btwd/internal/config"
	btwdexec "github.com/btwd/btwd/internal/exec"
	"github.com/btwd/btwd/internal/intent"
	"github.com/btwd/btwd/internal/llm"
	"github.com/btwd/btwd/internal/orchestrator"
	"github.com/btwd/btwd/internal/osd"
	"github.com/btwd/btwd/internal/player"
	"github.com/btwd/btwd/internal/registry"
	"github.com/btwd/btwd/internal/search"
	"github.com/btwd/btwd/internal/tts"
	"github.com/btwd/btwd/internal/utterance"
	"github.com/btwd/btwd/internal/wake"
)

func main() {
	configPath := flag.String("config", "", "Path to the daemon's YAML configuration file")
	envPath := flag.String("env", "", "Path to the .env credentials file")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath, flag.Args())
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	log.Println("🎤 btwd starting...")

	reg, err := registry.Load(cfg.AllowListPath)
	if err != nil {
		log.Fatalf("command registry error: %v", err)
	}
	log.Printf("📋 loaded %d allow-listed commands", len(reg.List()))

	audioSource, err := audio.NewSource()
	if err != nil {
		log.Fatalf("audio device error: %v", err)
	}
	defer audioSource.Close()

	wakeDetector, err := wake.New(wake.Config{
		AccessKey:   cfg.WakeWordAccessKey,
		KeywordFile: cfg.WakeWord.PPNPath,
		ModelDir:    cfg.WakeWord.ModelPath,
		Device:      cfg.WakeWord.Device,
		Keywords:    []wake.Keyword{{Name: "wake", Sensitivity: cfg.WakeWord.Sensitivity}},
	})
	if err != nil {
		log.Fatalf("wake detector error: %v", err)
	}
	defer wakeDetector.Close()

	capturer, err := utterance.New(utterance.Config{
		VADModelPath:     cfg.VAD.ModelPath,
		Threshold:        cfg.VAD.Threshold,
		TrailingSilence:  time.Duration(cfg.VAD.TrailingSilenceMs) * time.Millisecond,
		MaxDuration:      time.Duration(cfg.VAD.MaxDurationSeconds * float64(time.Second)),
		PreSpeechTimeout: time.Duration(cfg.VAD.PreSpeechTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("utterance capturer error: %v", err)
	}
	defer capturer.Close()

	asrClient := asr.New(asr.Config{Endpoint: cfg.ASR.Endpoint, APIKey: cfg.LLMCredential})

	classifier, err := llm.New(llm.Config{
		Name:         cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		OllamaHost:   cfg.LLMCredential,
		OpenAIAPIKey: cfg.LLMCredential,
	})
	if err != nil {
		log.Fatalf("llm provider error: %v", err)
	}
	router := intent.New(reg, classifier)

	executor := btwdexec.New(reg, btwdexec.Config{
		ConfirmationTimeout: cfg.ConfirmationTimeout(),
		DryRun:              cfg.Execution.DryRun,
		Helper:              confirmationHelper,
		PollSpool:           readSpoolReply,
	})

	var searcher *search.Client
	if cfg.Search.Enabled && cfg.SearchCredential != "" {
		searcher = search.New(search.Config{Timeout: cfg.SearchTimeout(), Country: cfg.Search.Country})
	}
	answerPath := answer.New(answer.Config{
		SearchEnabled:  cfg.Search.Enabled && cfg.SearchCredential != "",
		SearchProvider: "duckduckgo",
		SummarizerName: cfg.LLM.Provider,
	}, searcher, classifier)

	var notifier *osd.Notifier
	if cfg.UI.OSD {
		notifier, err = osd.New("btwd")
		if err != nil {
			log.Printf("osd disabled: %v", err)
		} else {
			defer notifier.Close()
		}
	}

	var ttsClient *tts.Client
	var audioPlayer *player.Player
	if cfg.SpeechOutput.Enabled {
		ttsClient = tts.New(tts.Config{
			Endpoint: cfg.SpeechOutput.Endpoint,
			APIKey:   cfg.TTSCredential,
			Voice:    cfg.SpeechOutput.Voice,
			Rate:     cfg.SpeechOutput.Rate,
		})
		audioPlayer, err = player.New(nil)
		if err != nil {
			log.Printf("speech output disabled: %v", err)
			ttsClient = nil
		}
	}

	orch := orchestrator.New(orchestrator.Config{
		AudioSource:           audioSource,
		WakeDetect:            wakeDetector,
		Capturer:              capturer,
		ASRClient:             asrClient,
		Router:                router,
		Executor:              executor,
		AnswerPath:            answerPath,
		Notifier:              notifier,
		TTSClient:             ttsClient,
		Player:                audioPlayer,
		OSDEnabled:            cfg.UI.OSD && notifier != nil,
		SpeechOutputEnabled:   cfg.SpeechOutput.Enabled && ttsClient != nil,
		ListeningNotification: cfg.UI.ListeningNotification,
		OSDTimeout:            time.Duration(cfg.UI.OSDTimeoutMs) * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := audioSource.Start(); err != nil {
		log.Fatalf("audio capture start error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	log.Println("🎙️ listening for wake word")

	select {
	case <-sigChan:
		log.Println("shutting down...")
	case err := <-done:
		if err != nil {
			log.Printf("orchestrator exited: %v", err)
		}
	}

	audioSource.Stop()
	cancel()

	select {
	case <-done:
		log.Println("shutdown complete")
	case <-time.After(2 * time.Second):
		log.Println("⚠️ shutdown timeout, forcing exit")
	}
}

// confirmationHelper invokes the external confirmation program (spec.md
// §6): the core never prompts the user directly. The helper's own binary
// is resolved from PATH under the name "btwd-confirm".
func confirmationHelper(requestID, title, body string) error {
	path, err := exec.LookPath("btwd-confirm")
	if err != nil {
		return err
	}
	cmd := exec.Command(path, requestID, title, body)
	return cmd.Start()
}

// readSpoolReply reads the confirmation helper's one-shot spool file
// (spec.md §6: "${XDG_RUNTIME_DIR}/btwd-confirm-<request_id>"). It
// consumes the file on a successful read so a stale reply can never be
// replayed against a later request with the same id.
func readSpoolReply(requestID string) (string, bool) {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = os.TempDir()
	}
	path := filepath.Join(runtimeDir, "btwd-confirm-"+requestID)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	_ = os.Remove(path)

	reply := strings.TrimSpace(string(data))
	if reply == "" {
		return "", false
	}
	return reply, true
}

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)
}
