package vitals

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/carelink/platform/pkg/common/models"
)

var (
	errMissingPatient = errors.New("patient_id required")
	errUnknownType    = errors.New("unknown vital type")
	errInvalidValue   = errors.New("value must be numeric")
	errOutOfRange     = errors.New("value outside physical range")
	errInvalidSource  = errors.New("invalid source")
	errMissingTime    = errors.New("recorded_at required")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type typeSpec struct {
	Unit string
	Min  float64
	Max  float64
}

// Physical plausibility bounds per vital type. Values outside these bands are
// sensor garbage, not clinically extreme readings; the alert engine handles
// the latter.
var typeSpecs = map[string]typeSpec{
	TypeHeartRate:       {Unit: "bpm", Min: 0, Max: 350},
	TypeBPSystolic:      {Unit: "mmHg", Min: 0, Max: 350},
	TypeBPDiastolic:     {Unit: "mmHg", Min: 0, Max: 250},
	TypeSpO2:            {Unit: "%", Min: 0, Max: 100},
	TypeTemperature:     {Unit: "°C", Min: 20, Max: 46},
	TypeGlucose:         {Unit: "mg/dL", Min: 0, Max: 1500},
	TypeWeight:          {Unit: "kg", Min: 0, Max: 700},
	TypeHeight:          {Unit: "cm", Min: 0, Max: 300},
	TypeBMI:             {Unit: "kg/m²", Min: 0, Max: 150},
	TypeRespiratoryRate: {Unit: "bpm", Min: 0, Max: 120},
	TypeSteps:           {Unit: "count", Min: 0, Max: 500000},
	TypeSleepHours:      {Unit: "hours", Min: 0, Max: 24},
	TypeCalories:        {Unit: "kcal", Min: 0, Max: 50000},
	TypeECG:             {Unit: "raw", Min: -math.MaxFloat64, Max: math.MaxFloat64},
}

var validSources = map[string]struct{}{
	SourceManual:   {},
	SourceDoctor:   {},
	SourceDevice:   {},
	SourceWearable: {},
	SourceExternal: {},
}

func KnownType(vitalType string) bool {
	_, ok := typeSpecs[vitalType]
	return ok
}

func DefaultUnit(vitalType string) string {
	return typeSpecs[vitalType].Unit
}

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate performs structural validation of a submission and returns the
// coerced numeric value. Optional fields (unit, source, source_id, notes,
// checksum) are never a reason for rejection.
func (v *Validator) Validate(sub models.VitalSubmission) (float64, error) {
	if sub.PatientID == "" {
		return 0, ValidationError{reason: errMissingPatient}
	}

	spec, ok := typeSpecs[sub.VitalType]
	if !ok {
		return 0, ValidationError{reason: fmt.Errorf("%q: %w", sub.VitalType, errUnknownType)}
	}

	value, ok := numericValue(sub.Value)
	if !ok {
		return 0, ValidationError{reason: fmt.Errorf("%v: %w", sub.Value, errInvalidValue)}
	}

	if math.IsNaN(value) || math.IsInf(value, 0) || value < spec.Min || value > spec.Max {
		return 0, ValidationError{reason: fmt.Errorf("%s=%v not in [%v, %v]: %w", sub.VitalType, value, spec.Min, spec.Max, errOutOfRange)}
	}

	if sub.RecordedAt.IsZero() {
		return 0, ValidationError{reason: errMissingTime}
	}

	if sub.Source != "" {
		if _, ok := validSources[sub.Source]; !ok {
			return 0, ValidationError{reason: fmt.Errorf("%q: %w", sub.Source, errInvalidSource)}
		}
	}

	return value, nil
}

func numericValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
