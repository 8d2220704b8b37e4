// Package scoring evaluates journal and chat text for sentiment, emotional
// intensity, themes, and risk flags. The default implementation is a
// deterministic keyword engine; anything stronger can replace it behind the
// same Scorer interface.
package scoring

import (
	"strings"
	"unicode"
)

// Risk flag names produced by every Scorer implementation.
const (
	FlagSelfHarm         = "self_harm_risk"
	FlagSevereDepression = "severe_depression"
	FlagIsolation        = "isolation"
	FlagPanic            = "panic"
)

// Result is the derived view of a piece of text.
type Result struct {
	// Sentiment ranges -1 (very negative) to +1 (very positive).
	Sentiment float64
	// Intensity quantifies negative affect magnitude in [0,1]. It is nil
	// when sentiment is positive.
	Intensity *float64
	Themes    []string
	RiskFlags map[string]bool
}

// HasRisk reports whether any risk flag is raised.
func (r Result) HasRisk() bool {
	for _, v := range r.RiskFlags {
		if v {
			return true
		}
	}
	return false
}

// Neutral is the zeroed result used when scoring is unavailable. Writes must
// never block on a scorer, so callers substitute Neutral() and move on.
func Neutral() Result {
	zero := 0.0
	return Result{
		Intensity: &zero,
		Themes:    []string{},
		RiskFlags: map[string]bool{
			FlagSelfHarm:         false,
			FlagSevereDepression: false,
			FlagIsolation:        false,
			FlagPanic:            false,
		},
	}
}

// Scorer maps text to derived scores. Implementations must be pure and
// deterministic for a given model version.
type Scorer interface {
	Score(text string) (Result, error)
}

var positiveWords = []string{
	"happy", "joy", "excited", "grateful", "thankful", "good", "great",
	"wonderful", "amazing", "love", "peace", "calm", "relief", "hope",
	"better", "improving",
}

var negativeWords = []string{
	"sad", "depressed", "anxious", "worried", "fear", "angry", "frustrated",
	"lonely", "hopeless", "tired", "exhausted", "pain", "hurt", "scared",
	"terrified", "panic", "overwhelmed",
}

var intensifiers = []string{
	"very", "extremely", "incredibly", "absolutely", "completely", "totally",
	"really", "so", "too",
}

var themePhrases = map[string][]string{
	"anxiety":       {"anxious", "worry", "worried", "nervous", "panic", "fear", "scared"},
	"depression":    {"sad", "depressed", "down", "hopeless", "empty", "numb", "worthless"},
	"stress":        {"stressed", "pressure", "overwhelmed", "burden", "tension"},
	"relationships": {"friend", "family", "partner", "relationship", "conflict", "argument"},
	"work":          {"work", "job", "career", "boss", "colleague", "deadline"},
	"health":        {"health", "sick", "pain", "doctor", "medication", "treatment"},
	"sleep":         {"sleep", "insomnia", "tired", "exhausted", "rest"},
	"self-harm":     {"cut myself", "hurt myself", "suicide", "kill myself", "not worth living"},
}

var riskPhrases = map[string][]string{
	FlagSelfHarm: {
		"kill myself", "end it", "not worth living", "suicide", "cut myself",
		"hurt myself", "want to die", "want to disappear",
	},
	FlagPanic: {
		"panic", "panic attack", "can't breathe", "heart racing",
	},
	FlagSevereDepression: {
		"hopeless", "no point", "nothing matters", "give up",
	},
	FlagIsolation: {
		"alone", "no one", "nobody cares", "isolated",
	},
}

// RuleScorer is the keyword-based scorer used in production. It never fails:
// empty or malformed input scores neutral.
type RuleScorer struct{}

func NewRuleScorer() *RuleScorer {
	return &RuleScorer{}
}

func (s *RuleScorer) Score(text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Neutral(), nil
	}

	lower := strings.ToLower(text)
	words := tokenize(lower)

	positive := countAny(words, positiveWords)
	negative := countAny(words, negativeWords)

	sentiment := 0.0
	if positive+negative > 0 {
		sentiment = float64(positive-negative) / float64(positive+negative)
	}
	sentiment = clamp(sentiment, -1, 1)

	res := Result{
		Sentiment: sentiment,
		Themes:    detectThemes(lower, words),
		RiskFlags: detectRisk(lower, words),
	}
	if sentiment <= 0 {
		intensity := intensityOf(text, lower, words)
		res.Intensity = &intensity
	}
	return res, nil
}

func intensityOf(text, lower string, words map[string]int) float64 {
	intensifierCount := countAny(words, intensifiers)
	exclamations := strings.Count(text, "!")
	var upper, letters int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	capsRatio := 0.0
	if letters > 0 {
		capsRatio = float64(upper) / float64(letters)
	}
	return clamp(float64(intensifierCount)*0.1+float64(exclamations)*0.05+capsRatio*0.3, 0, 1)
}

const maxThemes = 5

func detectThemes(lower string, words map[string]int) []string {
	// Fixed evaluation order keeps theme output deterministic.
	order := []string{"anxiety", "depression", "stress", "relationships", "work", "health", "sleep", "self-harm"}
	var themes []string
	for _, theme := range order {
		if matchesAny(lower, words, themePhrases[theme]) {
			themes = append(themes, theme)
			if len(themes) == maxThemes {
				break
			}
		}
	}
	if themes == nil {
		themes = []string{}
	}
	return themes
}

func detectRisk(lower string, words map[string]int) map[string]bool {
	flags := make(map[string]bool, len(riskPhrases))
	for flag, phrases := range riskPhrases {
		flags[flag] = matchesAny(lower, words, phrases)
	}
	return flags
}

// matchesAny matches multi-word phrases by substring and single words on
// token boundaries, so "end it" fires while "friend" does not trip "end".
func matchesAny(lower string, words map[string]int, phrases []string) bool {
	for _, p := range phrases {
		if strings.ContainsRune(p, ' ') || strings.ContainsRune(p, '\'') {
			if strings.Contains(lower, p) {
				return true
			}
		} else if words[p] > 0 {
			return true
		}
	}
	return false
}

func countAny(words map[string]int, list []string) int {
	n := 0
	for _, w := range list {
		if words[w] > 0 {
			n++
		}
	}
	return n
}

func tokenize(lower string) map[string]int {
	counts := make(map[string]int)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	}) {
		counts[strings.Trim(w, "'")]++
	}
	return counts
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Summarize renders the short deterministic entry summary surfaced to the
// caller alongside the scores.
func Summarize(r Result) string {
	lead := "Mixed emotional state."
	switch {
	case r.Sentiment > 0.3:
		lead = "Overall positive mood detected."
	case r.Sentiment < -0.3:
		lead = "Challenging emotions expressed."
	}
	if len(r.Themes) == 0 {
		return lead + " General reflection noted."
	}
	n := len(r.Themes)
	if n > 2 {
		n = 2
	}
	return lead + " Themes noted: " + strings.Join(r.Themes[:n], ", ") + "."
}
