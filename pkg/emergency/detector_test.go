package emergency

import "testing"

func TestDetectTriggerWordsAndPhrases(t *testing.T) {
	detection := DetectTrigger("Emergency! Patient is having a heart attack")
	if !detection.Triggered {
		t.Fatal("expected trigger detection")
	}
	if detection.Confidence < 0.7 {
		t.Fatalf("word plus phrase should score at least 0.7, got %v", detection.Confidence)
	}
	if len(detection.DetectedWords) < 2 {
		t.Fatalf("expected both word and phrase detected, got %v", detection.DetectedWords)
	}
}

func TestDetectTriggerConfidenceIsCapped(t *testing.T) {
	detection := DetectTrigger("emergency help urgent critical can't breathe unconscious")
	if detection.Confidence != 1.0 {
		t.Fatalf("expected confidence capped at 1.0, got %v", detection.Confidence)
	}
}

func TestDetectTriggerBenignText(t *testing.T) {
	detection := DetectTrigger("patient reports feeling fine after lunch")
	if detection.Triggered {
		t.Fatalf("expected no trigger, got %v", detection.DetectedWords)
	}
	if detection.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", detection.Confidence)
	}
}

func TestDetectTriggerEmptyInput(t *testing.T) {
	detection := DetectTrigger("")
	if detection.Triggered {
		t.Fatal("empty input must not trigger")
	}
}

func TestExtractPatientID(t *testing.T) {
	cases := map[string]string{
		"emergency for patient id abc-123":   "abc-123",
		"need help for patient xyz789":       "xyz789",
		"id: p-42 unresponsive":              "p-42",
		"patient john unresponsive":          "john",
		"no identifier anywhere in here yhm": "",
	}

	for input, want := range cases {
		if got := ExtractPatientID(input); got != want {
			t.Errorf("%q: expected %q, got %q", input, want, got)
		}
	}
}
