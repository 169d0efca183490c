package stage

import (
	"regexp"
	"strings"
)

var (
	headingOrFenceRE = regexp.MustCompile("(?m)^(#{1,6}\\s|```)")
	sentenceEndRE    = regexp.MustCompile(`[.!?](\s|$)`)
	uncertaintyRE    = regexp.MustCompile(`(?i)\b(maybe|might|perhaps|possibly)\b`)
	actionableVerbRE = regexp.MustCompile(`(?i)\b(use|call|run|set|apply)\b`)
)

// scoreQuality computes the per-stage quality score on stream close
// (spec.md §4.4): five additive 0.2 signals over the emitted text.
func scoreQuality(answer string) float64 {
	var score float64

	if len(answer) >= 200 {
		score += 0.2
	}
	if headingOrFenceRE.MatchString(answer) {
		score += 0.2
	}
	if len(sentenceEndRE.FindAllStringIndex(answer, -1)) >= 3 {
		score += 0.2
	}
	if !uncertaintyRE.MatchString(finalThird(answer)) {
		score += 0.2
	}
	if actionableVerbRE.MatchString(answer) {
		score += 0.2
	}

	return score
}

// finalThird returns the final third of s by rune count, the window
// spec.md §4.4's uncertainty-marker check applies to.
func finalThird(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	start := len(runes) - len(runes)/3
	if start < 0 {
		start = 0
	}
	return strings.TrimSpace(string(runes[start:]))
}
