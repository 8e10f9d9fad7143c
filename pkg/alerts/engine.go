package alerts

import "fmt"

// Finding is the outcome of evaluating one measurement against the rule
// table, before it is persisted as an Alert.
type Finding struct {
	AlertType string
	Severity  string
	Title     string
	Message   string
	Threshold float64
}

// Engine evaluates measurements against an immutable rule table. It holds no
// other state and is safe for concurrent use.
type Engine struct {
	rules []Rule
}

func NewEngine(cfg RulesConfig) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rules := make([]Rule, len(cfg.Rules))
	copy(rules, cfg.Rules)
	return &Engine{rules: rules}, nil
}

// Evaluate returns the finding for the most severe matching band, or nil when
// no rule matches. Vital types with no configured rules never alert.
func (e *Engine) Evaluate(vitalType string, value float64) *Finding {
	var best *Rule
	for i := range e.rules {
		rule := &e.rules[i]
		if rule.VitalType != vitalType || !rule.matches(value) {
			continue
		}
		if best == nil || SeverityRank(rule.Severity) > SeverityRank(best.Severity) {
			best = rule
		}
	}

	if best == nil {
		return nil
	}

	return &Finding{
		AlertType: best.AlertType,
		Severity:  best.Severity,
		Title:     best.Title,
		Message:   fmt.Sprintf(best.Message, value),
		Threshold: best.Bound,
	}
}
