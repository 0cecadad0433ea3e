package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/config"
)

// ConfigCheckResult holds the result of configuration validation
type ConfigCheckResult struct {
	Missing  []string          // Required settings that are missing
	Present  map[string]string // Settings that are set (masked values)
	Warnings []string          // Non-fatal warnings
	Backend  string            // Reasoning backend in use
}

// CheckConfig reports per-bot settings and external tools the configuration depends on.
func CheckConfig(cfg *config.Config) *ConfigCheckResult {
	result := &ConfigCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
		Backend:  cfg.Reasoning.Backend,
	}

	if cfg.Nextcloud.URL == "" {
		result.Missing = append(result.Missing, "nextcloud.url")
	} else {
		result.Present["nextcloud.url"] = cfg.Nextcloud.URL
	}

	for _, name := range cfg.BotNames() {
		id := cfg.Bots[name]
		required := map[string]string{
			"secret":             id.Secret,
			"nextcloud_user":     id.NextcloudUser,
			"nextcloud_password": id.NextcloudPassword,
		}
		for key, val := range required {
			setting := "bots." + name + "." + key
			if val == "" {
				result.Missing = append(result.Missing, setting)
				continue
			}
			if key == "nextcloud_user" {
				result.Present[setting] = val
			} else {
				result.Present[setting] = maskSecret(val)
			}
		}

		if id.ERPNextUser == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("bot %s has no erpnext_user", name))
		}
		if id.ERPNextAPIKey != "" {
			result.Present["bots."+name+".erpnext_api_key"] = maskSecret(id.ERPNextAPIKey)
		}
		if id.WorkingDir != "" {
			if _, err := os.Stat(id.WorkingDir); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("bot %s working_dir %s does not exist", name, id.WorkingDir))
			}
		}
	}
	sort.Strings(result.Missing)

	tools := map[string]string{
		"transcription.whisper.python": cfg.Transcription.Whisper.Python,
		"preview.pdftotext":            cfg.Preview.PDFToText,
		"preview.pdfinfo":              cfg.Preview.PDFInfo,
	}
	if cfg.Reasoning.Backend == "cli" {
		tools["reasoning.cli.path"] = cfg.Reasoning.CLI.Path
	}
	for setting, tool := range tools {
		if tool == "" {
			continue
		}
		if _, err := exec.LookPath(tool); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s not found in PATH", setting, tool))
		}
	}
	sort.Strings(result.Warnings)

	return result
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(w io.Writer, result *ConfigCheckResult) {
	fmt.Fprintln(w, "=== Configuration Check ===")
	fmt.Fprintf(w, "Reasoning backend: %s\n", result.Backend)
	fmt.Fprintln(w, "")

	if len(result.Missing) > 0 {
		fmt.Fprintln(w, "Missing required settings:")
		for _, v := range result.Missing {
			fmt.Fprintf(w, "   - %s\n", v)
		}
		fmt.Fprintln(w, "")
	}

	if len(result.Present) > 0 {
		fmt.Fprintln(w, "Configured settings:")
		keys := make([]string, 0, len(result.Present))
		for k := range result.Present {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "   - %s = %s\n", k, result.Present[k])
		}
		fmt.Fprintln(w, "")
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}

	if len(result.Missing) == 0 {
		fmt.Fprintln(w, "All required configuration is present")
	}

	fmt.Fprintln(w, "============================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

// LoadEnvFile loads environment variables from a file, overwriting existing ones.
// It runs before the configuration is read so TALKBOT_ overrides can live in a .env file.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		// Overwrite environment variable
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}
