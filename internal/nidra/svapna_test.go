package nidra

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractCandidateFactsKeepsOnlyTriggeredSentences(t *testing.T) {
	content := "We decided to always use tabs in this repo. The weather is nice today. Never commit secrets."
	facts := extractCandidateFacts(content)
	require.Len(t, facts, 2)
	require.Contains(t, facts[0], "decided")
}

func TestDedupeAndCapFactsRemovesDuplicatesCaseInsensitively(t *testing.T) {
	facts := []string{"Always use tabs", "always USE tabs", "Never commit secrets"}
	out := dedupeAndCapFacts(facts, 10)
	require.Len(t, out, 2)
}

func TestDedupeAndCapFactsRespectsMax(t *testing.T) {
	facts := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		facts = append(facts, string(rune('a'+i))+" decided something unique enough")
	}
	out := dedupeAndCapFacts(facts, 3)
	require.Len(t, out, 3)
}
