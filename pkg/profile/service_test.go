package profile

import (
	"context"
	"testing"
	"time"

	"github.com/carelink/platform/pkg/alerts"
	"github.com/carelink/platform/pkg/common/models"
	"github.com/carelink/platform/pkg/vitals"
)

type stubVitals struct {
	latest []vitals.Measurement
}

func (s *stubVitals) LatestPerType(ctx context.Context, patientID string) ([]vitals.Measurement, error) {
	return s.latest, nil
}

type stubAlerts struct {
	open []alerts.Alert
}

func (s *stubAlerts) List(ctx context.Context, patientID string, includeResolved bool, limit int) ([]alerts.Alert, error) {
	if includeResolved {
		return nil, nil
	}
	return s.open, nil
}

func TestSummaryAssemblesSnapshot(t *testing.T) {
	latest := []vitals.Measurement{
		{ID: "v-1", PatientID: "patient-1", VitalType: vitals.TypeHeartRate, Value: 72, RecordedAt: time.Now().UTC()},
		{ID: "v-2", PatientID: "patient-1", VitalType: vitals.TypeGlucose, Value: 190, RecordedAt: time.Now().UTC()},
	}
	open := []alerts.Alert{
		{ID: "a-1", PatientID: "patient-1", Severity: alerts.SeverityHigh},
	}

	svc := NewService(&stubVitals{latest: latest}, &stubAlerts{open: open})
	decision := models.Decision{Allowed: true, Reason: models.DecisionConsent}

	summary, err := svc.Summary(context.Background(), "patient-1", decision)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.PatientID != "patient-1" {
		t.Fatalf("expected patient-1, got %q", summary.PatientID)
	}
	if len(summary.Latest) != 2 {
		t.Fatalf("expected 2 latest vitals, got %d", len(summary.Latest))
	}
	if len(summary.OpenAlerts) != 1 {
		t.Fatalf("expected 1 open alert, got %d", len(summary.OpenAlerts))
	}
	if summary.Access.Reason != models.DecisionConsent {
		t.Fatalf("expected access decision attached, got %+v", summary.Access)
	}
	if summary.GeneratedAt.IsZero() {
		t.Fatal("expected generation timestamp")
	}
}
