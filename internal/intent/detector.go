// Package intent classifies free-text chat messages with respect to finishing the task bound
// to a conversation.
package intent

import "strings"

// Verdict is the outcome of classifying a message.
type Verdict int

const (
	None Verdict = iota
	Confirm
	Complete
)

func (v Verdict) String() string {
	switch v {
	case Confirm:
		return "confirm"
	case Complete:
		return "complete"
	default:
		return "none"
	}
}

// Explicit completion phrases. Checked before the confirmation phrases.
var completePhrases = []string{
	"taak afronden", "taak afsluiten", "taak voltooien",
	"sluit de taak", "rond de taak af", "voltooi de taak",
	"markeer als klaar", "markeer als voltooid", "markeer als afgerond",
	"zet op klaar", "zet op done", "naar klaar verplaatsen",
	"taak is klaar", "taak is af", "taak voltooid",
	"dit is klaar", "alles is klaar", "alles afgerond",
	"we zijn klaar", "ik ben klaar", "klaar met de taak",
}

// Phrases asking whether the task may be closed.
var confirmPhrases = []string{
	"kunnen we afronden", "kunnen we afsluiten",
	"mag de taak dicht", "taak dicht", "afronden?",
	"is de taak klaar", "ben je klaar", "zijn we klaar",
	"kan dit dicht", "sluiten we af",
}

var affirmations = map[string]struct{}{
	"ja":        {},
	"yes":       {},
	"ok":        {},
	"oké":       {},
	"bevestig":  {},
	"bevestigd": {},
	"akkoord":   {},
}

// Classify returns Complete when text contains an explicit completion phrase, Confirm when it
// asks whether the task can be closed, and None otherwise. Matching is case-insensitive.
func Classify(text string) Verdict {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return None
	}
	for _, p := range completePhrases {
		if strings.Contains(lower, p) {
			return Complete
		}
	}
	for _, p := range confirmPhrases {
		if strings.Contains(lower, p) {
			return Confirm
		}
	}
	return None
}

// IsAffirmation reports whether text, as a whole, is a short "yes".
func IsAffirmation(text string) bool {
	_, ok := affirmations[strings.ToLower(strings.TrimSpace(text))]
	return ok
}
