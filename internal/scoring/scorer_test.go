package scoring

import (
	"reflect"
	"testing"
)

func score(t *testing.T, text string) Result {
	t.Helper()
	res, err := NewRuleScorer().Score(text)
	if err != nil {
		t.Fatalf("Score(%q): %v", text, err)
	}
	return res
}

func TestScoreEmptyInputNeutral(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		res := score(t, text)
		if res.Sentiment != 0 {
			t.Errorf("Score(%q).Sentiment = %v, want 0", text, res.Sentiment)
		}
		if res.HasRisk() {
			t.Errorf("Score(%q) raised a risk flag", text)
		}
		if len(res.Themes) != 0 {
			t.Errorf("Score(%q).Themes = %v, want none", text, res.Themes)
		}
	}
}

// TestScoreSelfHarmRisk verifies high-risk phrasing raises the self-harm flag
// and produces strongly negative sentiment.
func TestScoreSelfHarmRisk(t *testing.T) {
	res := score(t, "I feel completely hopeless and want to disappear")

	if !res.RiskFlags[FlagSelfHarm] {
		t.Error("self_harm_risk not raised")
	}
	if !res.RiskFlags[FlagSevereDepression] {
		t.Error("severe_depression not raised for hopeless")
	}
	if res.Sentiment >= 0 {
		t.Errorf("sentiment = %v, want negative", res.Sentiment)
	}
	if res.Intensity == nil {
		t.Error("intensity missing on a negative entry")
	}
}

func TestScorePositiveSentiment(t *testing.T) {
	res := score(t, "I am so happy and grateful today, things are getting better")

	if res.Sentiment <= 0 {
		t.Errorf("sentiment = %v, want positive", res.Sentiment)
	}
	if res.Intensity != nil {
		t.Errorf("intensity = %v on positive sentiment, want nil", *res.Intensity)
	}
	if res.HasRisk() {
		t.Errorf("risk flags raised on positive text: %v", res.RiskFlags)
	}
}

func TestScoreMixedSentimentBounded(t *testing.T) {
	res := score(t, "happy but sad, hopeful but worried")
	if res.Sentiment < -1 || res.Sentiment > 1 {
		t.Errorf("sentiment %v out of [-1,1]", res.Sentiment)
	}
}

// TestScoreWordBoundaries verifies single keywords match on token boundaries:
// "friend" must not trip any risk word it happens to contain.
func TestScoreWordBoundaries(t *testing.T) {
	res := score(t, "met a friend for coffee and talked about the weekend")
	if res.HasRisk() {
		t.Errorf("risk flags raised by substring match: %v", res.RiskFlags)
	}

	// The phrase form still matches as a substring.
	res = score(t, "sometimes I just want to end it all")
	if !res.RiskFlags[FlagSelfHarm] {
		t.Error("phrase \"end it\" did not raise self_harm_risk")
	}
}

func TestScorePanicDetection(t *testing.T) {
	res := score(t, "my heart racing and I can't breathe, I think it's a panic attack")
	if !res.RiskFlags[FlagPanic] {
		t.Error("panic flag not raised")
	}
	themes := res.Themes
	found := false
	for _, th := range themes {
		if th == "anxiety" {
			found = true
		}
	}
	if !found {
		t.Errorf("anxiety theme not detected, got %v", themes)
	}
}

// TestScoreDeterministic verifies identical input yields identical output,
// including theme order.
func TestScoreDeterministic(t *testing.T) {
	text := "stressed about work deadlines, not sleeping, worried about my family"
	first := score(t, text)
	for i := 0; i < 5; i++ {
		again := score(t, text)
		if !reflect.DeepEqual(first.Themes, again.Themes) {
			t.Fatalf("theme order varies: %v vs %v", first.Themes, again.Themes)
		}
		if !reflect.DeepEqual(first.RiskFlags, again.RiskFlags) {
			t.Fatalf("risk flags vary: %v vs %v", first.RiskFlags, again.RiskFlags)
		}
		if first.Sentiment != again.Sentiment {
			t.Fatalf("sentiment varies: %v vs %v", first.Sentiment, again.Sentiment)
		}
	}
}

func TestScoreThemeCap(t *testing.T) {
	text := "anxious and depressed, stressed at work, fighting with family, " +
		"health problems, can't sleep, and I think about suicide"
	res := score(t, text)
	if len(res.Themes) > 5 {
		t.Errorf("got %d themes, cap is 5: %v", len(res.Themes), res.Themes)
	}
}

func TestIntensityGrowsWithEmphasis(t *testing.T) {
	calm := score(t, "i feel sad today")
	loud := score(t, "I feel SO EXTREMELY SAD today!!! completely overwhelmed!!!")
	if calm.Intensity == nil || loud.Intensity == nil {
		t.Fatal("intensity missing on negative entries")
	}
	if *loud.Intensity <= *calm.Intensity {
		t.Errorf("emphatic text intensity %v not above calm %v", *loud.Intensity, *calm.Intensity)
	}
	if *loud.Intensity > 1 {
		t.Errorf("intensity %v above 1", *loud.Intensity)
	}
}

func TestSummarize(t *testing.T) {
	res := score(t, "anxious and worried about everything")
	sum := Summarize(res)
	if sum == "" {
		t.Fatal("empty summary")
	}

	neutral := Summarize(Neutral())
	if neutral == "" {
		t.Fatal("empty neutral summary")
	}
}
