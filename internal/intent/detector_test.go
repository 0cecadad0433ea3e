package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Verdict
	}{
		{"taak is klaar", Complete},
		{"Taak Is Klaar", Complete},
		{"Oké, we zijn klaar hiermee", Complete},
		{"markeer als afgerond graag", Complete},
		{"is de taak klaar?", Confirm},
		{"Kunnen we afronden?", Confirm},
		{"afronden?", Confirm},
		{"hoe gaat het", None},
		{"", None},
		{"   ", None},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestClassifyExplicitWinsOverConfirm(t *testing.T) {
	// contains both "zijn we klaar" (confirm) and "taak is af" (complete)
	assert.Equal(t, Complete, Classify("zijn we klaar? ja, de taak is af"))
}

func TestPhraseSetsAreDisjoint(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range completePhrases {
		seen[p] = true
	}
	for _, p := range confirmPhrases {
		assert.False(t, seen[p], "phrase %q in both sets", p)
	}
}

func TestIsAffirmation(t *testing.T) {
	for _, s := range []string{"ja", "JA", " yes ", "ok", "Oké", "bevestigd", "akkoord"} {
		assert.True(t, IsAffirmation(s), s)
	}
	for _, s := range []string{"ja hoor", "nee", "", "okay"} {
		assert.False(t, IsAffirmation(s), s)
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "confirm", Confirm.String())
	assert.Equal(t, "complete", Complete.String())
}
