package alerts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRulesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := []byte(`rules:
  - vital_type: glucose
    op: ">"
    bound: 250
    alert_type: diabetes_high
    severity: HIGH
    title: High Glucose
    message: "Glucose of %v is high."
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg, err := LoadRules(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(cfg.Rules))
	}
	if cfg.Rules[0].Bound != 250 {
		t.Fatalf("expected bound 250, got %v", cfg.Rules[0].Bound)
	}
}

func TestLoadRulesEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadRules("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Rules) == 0 {
		t.Fatal("expected built-in rules")
	}
}

func TestLoadRulesRejectsEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules: []\n"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	if _, err := LoadRules(path); err == nil {
		t.Fatal("expected error for empty rule table")
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	if SeverityRank(SeverityCritical) <= SeverityRank(SeverityHigh) {
		t.Fatal("critical must outrank high")
	}
	if SeverityRank(SeverityHigh) <= SeverityRank(SeverityMedium) {
		t.Fatal("high must outrank medium")
	}
	if SeverityRank(SeverityMedium) <= SeverityRank(SeverityLow) {
		t.Fatal("medium must outrank low")
	}
	if SeverityRank("unknown") != 0 {
		t.Fatal("unknown severity must rank zero")
	}
}
