package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/metrics"
)

// ErrEmptyTranscript is returned when the audio contained no recognisable speech.
var ErrEmptyTranscript = errors.New("transcription produced no text")

// WhisperConfig configures the Whisper transcriber.
type WhisperConfig struct {
	Python   string `koanf:"python"`
	Model    string `koanf:"model"`
	Language string `koanf:"language"`
}

// whisperScript reads the audio path from argv so the path never becomes part of the code.
const whisperScript = `import sys
import whisper
model = whisper.load_model(sys.argv[1])
result = model.transcribe(sys.argv[2], language=sys.argv[3])
print(result["text"])
`

// WhisperTranscriber runs openai-whisper in a Python subprocess.
type WhisperTranscriber struct {
	cfg WhisperConfig
}

// NewWhisperTranscriber defaults to python3, the base model and Dutch.
func NewWhisperTranscriber(cfg WhisperConfig) *WhisperTranscriber {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	if cfg.Language == "" {
		cfg.Language = "nl"
	}
	return &WhisperTranscriber{cfg: cfg}
}

// Transcribe returns the spoken text of the audio file at audioPath. The deadline of ctx
// bounds the run.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, w.cfg.Python, "-c", whisperScript, w.cfg.Model, audioPath, w.cfg.Language)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.ObserveExternal("transcription", "whisper", start, ctxErr)
		return "", fmt.Errorf("transcription interrupted: %w", ctxErr)
	}
	metrics.ObserveExternal("transcription", "whisper", start, err)
	if err != nil {
		log.Error().Err(err).Str("stderr", tail(stderr.String(), 500)).Str("path", audioPath).Msg("Whisper failed")
		return "", fmt.Errorf("whisper failed: %w", err)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
