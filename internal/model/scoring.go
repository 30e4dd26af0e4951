package model

import (
	"math"
	"strings"

	"aibook/internal/util"
)

// InterestRelevance scores how relevant a piece of text is to a character's
// interests, normalized to [0,1].
func InterestRelevance(text string, interests []string) float64 {
	tokens := util.Tokenize(text)
	if len(tokens) == 0 || len(interests) == 0 {
		return 0
	}
	kw := make(map[string]bool, len(interests))
	for _, k := range interests {
		for _, t := range util.Tokenize(k) {
			kw[t] = true
		}
	}
	hits := 0.0
	for _, t := range tokens {
		if kw[t] {
			hits++
		}
	}
	norm := hits / (float64(len(tokens)) + 1)
	if norm > 1 {
		norm = 1
	}
	return math.Round(norm*100) / 100
}

// HostileMessage is a crude lexical check used by the offline provider in
// place of real sentiment analysis.
func HostileMessage(message string) bool {
	hostile := []string{"stupid", "hate", "bad", "dumb", "idiot", "ugly", "shut up"}
	return util.ContainsAnyCaseInsensitive(strings.TrimSpace(message), hostile)
}
