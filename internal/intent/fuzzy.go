package intent

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/loreforge/loreforge/internal/state"
)

// Fuzzy name resolution runs in two stages: Double Metaphone codes filter
// phonetic candidates, then Jaro-Winkler similarity ranks them. When no
// phonetic candidate clears the bar, a pure similarity pass with a stricter
// threshold catches plain misspellings ("seargent vale" → "Sergeant Vale").
const (
	phoneticThreshold = 0.70
	fuzzyThreshold    = 0.85
)

// MatchNPC resolves a name fragment against the NPCs present. Returns the
// matched NPC and true, or false when nothing clears the thresholds — the
// orchestrator then falls back to LLM-assisted index resolution.
func MatchNPC(fragment string, npcs []state.NPC) (state.NPC, bool) {
	names := make([]string, len(npcs))
	for i, n := range npcs {
		names[i] = n.Name
	}
	idx, ok := matchName(fragment, names)
	if !ok {
		return state.NPC{}, false
	}
	return npcs[idx], true
}

// MatchName resolves a name fragment against arbitrary candidate names
// (enemies, locations). Returns the winning candidate index.
func MatchName(fragment string, candidates []string) (int, bool) {
	return matchName(fragment, candidates)
}

func matchName(fragment string, candidates []string) (int, bool) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" || len(candidates) == 0 {
		return 0, false
	}
	fragTokens := strings.Fields(fragment)
	fragCodes := metaphoneCodes(fragTokens)

	bestIdx := -1
	bestScore := 0.0
	bestPhonetic := false

	for i, cand := range candidates {
		candLower := strings.ToLower(strings.TrimSpace(cand))
		if candLower == "" {
			continue
		}
		candTokens := strings.Fields(candLower)
		phonetic := codesOverlap(fragCodes, metaphoneCodes(candTokens))
		score := similarity(fragTokens, candTokens, fragment, candLower)

		switch {
		case phonetic && score >= phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestIdx, bestScore, bestPhonetic = i, score, true
			}
		case !phonetic && !bestPhonetic:
			if score >= fuzzyThreshold && score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
	}
	return bestIdx, bestIdx >= 0
}

// metaphoneCodes returns the union of Double Metaphone codes over tokens.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score across full strings,
// space-stripped strings, and all token pairs. Token pairs cover the common
// case of addressing a multi-word NPC by one word ("vale").
func similarity(fragTokens, candTokens []string, frag, cand string) float64 {
	score := matchr.JaroWinkler(frag, cand, false)
	if len(fragTokens) > 1 || len(candTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(fragTokens, ""), strings.Join(candTokens, ""), false); s > score {
			score = s
		}
	}
	for _, ft := range fragTokens {
		for _, ct := range candTokens {
			if s := matchr.JaroWinkler(ft, ct, false); s > score {
				score = s
			}
		}
	}
	return score
}
