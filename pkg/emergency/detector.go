package emergency

import (
	"regexp"
	"strings"
	"time"
)

// Detection is the result of scanning voice-to-text or free-text input for
// emergency trigger words.
type Detection struct {
	Triggered     bool      `json:"triggered"`
	Confidence    float64   `json:"confidence"`
	DetectedWords []string  `json:"detected_words"`
	InputText     string    `json:"input_text,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

var triggerWords = []string{
	"emergency",
	"help",
	"urgent",
	"critical",
}

var emergencyPhrases = []string{
	"need help",
	"medical emergency",
	"heart attack",
	"can't breathe",
	"unconscious",
	"severe pain",
	"accident",
}

var patientIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`patient\s+id\s+([a-zA-Z0-9-]+)`),
	regexp.MustCompile(`id[:\s]+([a-zA-Z0-9-]+)`),
	regexp.MustCompile(`for\s+patient\s+([a-zA-Z0-9-]+)`),
	regexp.MustCompile(`patient\s+([a-zA-Z0-9-]+)`),
}

// DetectTrigger scans input text for trigger words and emergency phrases.
// Each word match adds 0.4 to the confidence score and each phrase 0.3,
// capped at 1.0.
func DetectTrigger(input string) Detection {
	detection := Detection{
		DetectedWords: []string{},
		InputText:     input,
		Timestamp:     time.Now().UTC(),
	}
	if input == "" {
		detection.InputText = ""
		return detection
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	for _, word := range triggerWords {
		if strings.Contains(normalized, word) {
			detection.DetectedWords = append(detection.DetectedWords, word)
			detection.Confidence += 0.4
		}
	}
	for _, phrase := range emergencyPhrases {
		if strings.Contains(normalized, phrase) {
			detection.DetectedWords = append(detection.DetectedWords, phrase)
			detection.Confidence += 0.3
		}
	}

	if detection.Confidence > 1.0 {
		detection.Confidence = 1.0
	}
	detection.Triggered = len(detection.DetectedWords) > 0

	return detection
}

// ExtractPatientID pulls a patient identifier out of an emergency message,
// matching phrasings like "patient id abc123" or "for patient abc123".
func ExtractPatientID(input string) string {
	if input == "" {
		return ""
	}

	normalized := strings.ToLower(input)
	for _, pattern := range patientIDPatterns {
		if match := pattern.FindStringSubmatch(normalized); match != nil {
			candidate := match[1]
			if candidate != "id" && candidate != "patient" {
				return candidate
			}
		}
	}
	return ""
}
