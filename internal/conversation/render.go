package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ElisionMarker replaces the middle of long messages in rendered history.
const ElisionMarker = "\n...[ingekort]...\n"

const (
	factsHeader   = "=== BELANGRIJKE FEITEN (onthoud dit) ==="
	newHeader     = "=== Nieuw gesprek ==="
	historyHeader = "=== GESPREKSGESCHIEDENIS ==="
	messageHeader = "=== NIEUW BERICHT ==="

	promptIntro = "Hieronder staat de gespreksgeschiedenis gevolgd door een nieuw bericht.\n" +
		"Houd rekening met de context van eerdere berichten bij je antwoord."
)

// Elide shortens content longer than limit characters by keeping its head and tail and
// replacing the middle with ElisionMarker. Shorter content is returned unchanged.
func Elide(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	half := (limit - 20) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + ElisionMarker + string(runes[len(runes)-half:])
}

// RenderContext builds the prompt block for token: numbered key facts first, then the most
// recent window of history with each message elided. It returns "" when the conversation
// has neither facts nor history.
func (s *Store) RenderContext(token string) string {
	facts := s.KeyFacts(token)

	s.historyMu.Lock()
	msgs := s.history[token]
	if len(msgs) > s.opts.Window {
		msgs = msgs[len(msgs)-s.opts.Window:]
	}
	recent := append([]Message(nil), msgs...)
	s.historyMu.Unlock()

	var lines []string
	if len(facts) > 0 {
		lines = append(lines, factsHeader)
		for i, f := range facts {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, f))
		}
		lines = append(lines, "")
	}

	if len(recent) == 0 {
		if len(lines) == 0 {
			return ""
		}
		lines = append(lines, newHeader)
		return strings.Join(lines, "\n")
	}

	lines = append(lines, historyHeader)
	for _, m := range recent {
		lines = append(lines, s.renderMessage(m))
	}
	lines = append(lines, "", messageHeader)
	return strings.Join(lines, "\n")
}

func (s *Store) renderMessage(m Message) string {
	name := m.Name
	if m.Role == RoleAssistant {
		name = s.opts.AssistantName
	}
	if name == "" {
		name = "Onbekend"
	}
	if !m.Timestamp.IsZero() {
		name = fmt.Sprintf("[%s] %s", m.Timestamp.Format("02/01 15:04"), name)
	}
	content := Elide(messageText(m.Content), s.opts.MaxMessageLength)
	return fmt.Sprintf("**%s:** %s", name, content)
}

// messageText unwraps contents stored as a raw Talk {"message": ...} document.
func messageText(content string) string {
	if !strings.HasPrefix(strings.TrimSpace(content), "{") {
		return content
	}
	var doc struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil || doc.Message == nil {
		return content
	}
	return *doc.Message
}

// BuildPrompt combines a rendered context with the new message of actor.
func BuildPrompt(context, actor, message string) string {
	if context == "" {
		return fmt.Sprintf("[%s]: %s", actor, message)
	}
	return fmt.Sprintf("%s\n\n%s\n[%s]: %s", promptIntro, context, actor, message)
}
