package alerts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Rule is one row of the threshold table. Op is ">" or "<" and Bound is the
// exclusive boundary, matching clinical convention ("glucose above 180").
type Rule struct {
	VitalType string  `yaml:"vital_type" json:"vital_type"`
	Op        string  `yaml:"op" json:"op"`
	Bound     float64 `yaml:"bound" json:"bound"`
	AlertType string  `yaml:"alert_type" json:"alert_type"`
	Severity  string  `yaml:"severity" json:"severity"`
	Title     string  `yaml:"title" json:"title"`
	Message   string  `yaml:"message" json:"message"`
}

func (r Rule) matches(value float64) bool {
	switch r.Op {
	case ">":
		return value > r.Bound
	case "<":
		return value < r.Bound
	default:
		return false
	}
}

type RulesConfig struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

func (c RulesConfig) validate() error {
	for i, rule := range c.Rules {
		if rule.VitalType == "" || rule.AlertType == "" {
			return fmt.Errorf("rule %d: vital_type and alert_type required", i)
		}
		if rule.Op != ">" && rule.Op != "<" {
			return fmt.Errorf("rule %d: op must be \">\" or \"<\", got %q", i, rule.Op)
		}
		if SeverityRank(rule.Severity) == 0 {
			return fmt.Errorf("rule %d: unknown severity %q", i, rule.Severity)
		}
	}
	return nil
}

// LoadRules reads the threshold table from a YAML file, falling back to the
// compiled-in defaults when no path is configured.
func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, err
	}
	if len(cfg.Rules) == 0 {
		return RulesConfig{}, errors.New("no alert rules configured")
	}
	if err := cfg.validate(); err != nil {
		return RulesConfig{}, err
	}

	return cfg, nil
}

// DefaultRules is the built-in clinical threshold table. Order within a vital
// type does not matter for correctness: the engine picks the most severe
// matching band.
func DefaultRules() RulesConfig {
	return RulesConfig{Rules: []Rule{
		{VitalType: "glucose", Op: ">", Bound: 300, AlertType: TypeDiabetesHigh, Severity: SeverityCritical, Title: "Critical High Blood Glucose", Message: "Blood glucose level of %v mg/dL is critically high. Immediate action required."},
		{VitalType: "glucose", Op: ">", Bound: 180, AlertType: TypeDiabetesHigh, Severity: SeverityHigh, Title: "High Blood Glucose", Message: "Blood glucose level of %v mg/dL is above normal range."},
		{VitalType: "glucose", Op: "<", Bound: 54, AlertType: TypeDiabetesLow, Severity: SeverityCritical, Title: "Critical Low Blood Glucose", Message: "Blood glucose level of %v mg/dL is critically low. Immediate action required."},
		{VitalType: "glucose", Op: "<", Bound: 70, AlertType: TypeDiabetesLow, Severity: SeverityLow, Title: "Low Blood Glucose", Message: "Blood glucose level of %v mg/dL is below normal range."},

		{VitalType: "heart_rate", Op: ">", Bound: 120, AlertType: TypeAbnormalHeartRate, Severity: SeverityHigh, Title: "High Heart Rate", Message: "Heart rate of %v bpm is elevated."},
		{VitalType: "heart_rate", Op: "<", Bound: 50, AlertType: TypeAbnormalHeartRate, Severity: SeverityLow, Title: "Low Heart Rate", Message: "Heart rate of %v bpm is below normal range."},

		{VitalType: "spo2", Op: "<", Bound: 90, AlertType: TypeLowOxygen, Severity: SeverityCritical, Title: "Critical Low Oxygen Saturation", Message: "Oxygen saturation of %v%% is critically low."},
		{VitalType: "spo2", Op: "<", Bound: 95, AlertType: TypeLowOxygen, Severity: SeverityLow, Title: "Low Oxygen Saturation", Message: "Oxygen saturation of %v%% is below normal range."},

		{VitalType: "bp_systolic", Op: ">", Bound: 180, AlertType: TypeHighBloodPressure, Severity: SeverityCritical, Title: "Critical High Blood Pressure", Message: "Systolic blood pressure of %v mmHg is critically high."},
		{VitalType: "bp_systolic", Op: ">", Bound: 140, AlertType: TypeHighBloodPressure, Severity: SeverityHigh, Title: "High Blood Pressure", Message: "Systolic blood pressure of %v mmHg is elevated."},
		{VitalType: "bp_systolic", Op: "<", Bound: 90, AlertType: TypeLowBloodPressure, Severity: SeverityLow, Title: "Low Blood Pressure", Message: "Systolic blood pressure of %v mmHg is low."},

		{VitalType: "temperature", Op: ">", Bound: 39.4, AlertType: TypeAbnormalTemperature, Severity: SeverityHigh, Title: "High Fever", Message: "Body temperature of %v°C indicates high fever."},
		{VitalType: "temperature", Op: ">", Bound: 38.0, AlertType: TypeAbnormalTemperature, Severity: SeverityMedium, Title: "Fever", Message: "Body temperature of %v°C is above normal."},
		{VitalType: "temperature", Op: "<", Bound: 35.0, AlertType: TypeAbnormalTemperature, Severity: SeverityHigh, Title: "Hypothermia", Message: "Body temperature of %v°C is abnormally low."},
	}}
}
