package profile

import (
	"context"
	"time"

	"github.com/carelink/platform/pkg/alerts"
	"github.com/carelink/platform/pkg/common/models"
	"github.com/carelink/platform/pkg/vitals"
)

type VitalSource interface {
	LatestPerType(ctx context.Context, patientID string) ([]vitals.Measurement, error)
}

type AlertSource interface {
	List(ctx context.Context, patientID string, includeResolved bool, limit int) ([]alerts.Alert, error)
}

// Summary is the clinician-facing snapshot of a patient: the latest reading
// of each vital type plus unresolved alerts, with the access decision that
// authorized the read attached.
type Summary struct {
	PatientID   string               `json:"patient_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Latest      []vitals.Measurement `json:"latest_vitals"`
	OpenAlerts  []alerts.Alert       `json:"open_alerts"`
	Access      models.Decision      `json:"access"`
}

type Service struct {
	vitals VitalSource
	alerts AlertSource
}

func NewService(vitalSource VitalSource, alertSource AlertSource) *Service {
	return &Service{vitals: vitalSource, alerts: alertSource}
}

func (s *Service) Summary(ctx context.Context, patientID string, decision models.Decision) (*Summary, error) {
	latest, err := s.vitals.LatestPerType(ctx, patientID)
	if err != nil {
		return nil, err
	}

	open, err := s.alerts.List(ctx, patientID, false, 50)
	if err != nil {
		return nil, err
	}

	return &Summary{
		PatientID:   patientID,
		GeneratedAt: time.Now().UTC(),
		Latest:      latest,
		OpenAlerts:  open,
		Access:      decision,
	}, nil
}
