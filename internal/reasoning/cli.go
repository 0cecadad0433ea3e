package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/metrics"
)

// Output formats understood by CLIBackend.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// CLIConfig configures the command-line reasoning backend.
type CLIConfig struct {
	// Path is the executable, "claude" by default.
	Path string `koanf:"path"`
	// Args precede the prompt, which is always passed as the last argument.
	Args         []string `koanf:"args"`
	OutputFormat string   `koanf:"output_format"`
}

// DefaultCLIArgs runs the CLI non-interactively with tool permissions granted.
var DefaultCLIArgs = []string{"--permission-mode", "bypassPermissions", "-p"}

// CLIBackend runs an agent CLI once per turn, with HOME pointed at the bot's config dir and
// the bot's working dir as cwd so each bot keeps its own credentials and tool setup.
type CLIBackend struct {
	cfg     CLIConfig
	prompts PromptOptions
}

// NewCLIBackend creates a CLI backend.
func NewCLIBackend(cfg CLIConfig, prompts PromptOptions) *CLIBackend {
	if cfg.Path == "" {
		cfg.Path = "claude"
	}
	if cfg.Args == nil {
		cfg.Args = DefaultCLIArgs
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = OutputText
	}
	return &CLIBackend{cfg: cfg, prompts: prompts}
}

func (b *CLIBackend) Name() string { return "cli" }

// GenerateReply runs the CLI and returns its trimmed stdout.
func (b *CLIBackend) GenerateReply(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	fullPrompt := SystemContext(b.prompts, req.Identity, req.Task) + req.Prompt

	args := append(append([]string(nil), b.cfg.Args...), fullPrompt)
	cmd := exec.CommandContext(ctx, b.cfg.Path, args...)
	cmd.Dir = req.Identity.WorkingDir
	cmd.Env = os.Environ()
	if req.Identity.ConfigDir != "" {
		cmd.Env = append(cmd.Env, "HOME="+req.Identity.ConfigDir)
	}
	if req.Identity.ERPNextAPIKey != "" {
		cmd.Env = append(cmd.Env,
			"ERPNEXT_USER="+req.Identity.ERPNextUser,
			"ERPNEXT_API_KEY="+req.Identity.ERPNextAPIKey,
			"ERPNEXT_API_SECRET="+req.Identity.ERPNextAPISecret,
		)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().
		Str("bot", req.Identity.BotName).
		Str("cwd", cmd.Dir).
		Int("prompt_length", len(fullPrompt)).
		Bool("task", req.Task != nil).
		Msg("Invoking reasoning CLI")

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.ObserveExternal("reasoning", b.Name(), start, ctxErr)
		return "", fmt.Errorf("reasoning CLI interrupted: %w", ctxErr)
	}
	metrics.ObserveExternal("reasoning", b.Name(), start, err)

	out := strings.TrimSpace(stdout.String())
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return "", fmt.Errorf("reasoning CLI exited with code %d: %s", exitErr.ExitCode(), msg)
			}
			// stdout of a failed run without diagnostics is still the best answer we have
			if out != "" {
				log.Warn().Int("exit_code", exitErr.ExitCode()).Msg("Reasoning CLI failed without stderr; using stdout")
				return b.decode(out)
			}
		}
		return "", fmt.Errorf("failed to run reasoning CLI: %w", err)
	}

	return b.decode(out)
}

// cliResult is the document printed by --output-format json.
type cliResult struct {
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}

func (b *CLIBackend) decode(out string) (string, error) {
	if b.cfg.OutputFormat == OutputJSON {
		var res cliResult
		if err := json.Unmarshal([]byte(out), &res); err != nil {
			repaired, repairErr := jsonrepair.JSONRepair(out)
			if repairErr != nil {
				return "", fmt.Errorf("failed to decode CLI output: %w", err)
			}
			if err := json.Unmarshal([]byte(repaired), &res); err != nil {
				return "", fmt.Errorf("failed to decode repaired CLI output: %w", err)
			}
			log.Debug().Msg("Reasoning CLI output needed JSON repair")
		}
		if res.IsError {
			return "", fmt.Errorf("reasoning CLI reported an error: %s", strings.TrimSpace(res.Result))
		}
		out = strings.TrimSpace(res.Result)
	}
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}
