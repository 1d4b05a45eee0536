package app

import (
	"math/rand"
	"strings"
)

// DefaultSpintaxIterations bounds how many brace groups a single text
// may resolve, preventing runaway expansion on nested input.
const DefaultSpintaxIterations = 10

// SpintaxExpander resolves brace-delimited variation syntax, picking
// one alternative per group uniformly at random: "{oi|olá} {a|b}" may
// become "olá a". Text without braces passes through unchanged.
type SpintaxExpander struct {
	maxIterations int
	pick          func(n int) int
}

func NewSpintaxExpander(maxIterations int) *SpintaxExpander {
	if maxIterations <= 0 {
		maxIterations = DefaultSpintaxIterations
	}
	return &SpintaxExpander{maxIterations: maxIterations, pick: rand.Intn}
}

// Expand resolves groups innermost-first so nested alternatives like
// "{a|{b|c}}" collapse correctly. Resolution stops after the iteration
// bound; any braces still present at that point are left as-is.
func (e *SpintaxExpander) Expand(text string) string {
	for i := 0; i < e.maxIterations; i++ {
		start, end, ok := innermostGroup(text)
		if !ok {
			return text
		}
		alternatives := strings.Split(text[start+1:end], "|")
		chosen := alternatives[e.pick(len(alternatives))]
		text = text[:start] + chosen + text[end+1:]
	}
	return text
}

// innermostGroup returns the indexes of the "{" and matching "}" of the
// first group containing no nested group.
func innermostGroup(text string) (int, int, bool) {
	start := -1
	for i, r := range text {
		switch r {
		case '{':
			start = i
		case '}':
			if start >= 0 {
				return start, i, true
			}
		}
	}
	return 0, 0, false
}
