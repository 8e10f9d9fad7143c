package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carelink/platform/pkg/audit"
	"github.com/carelink/platform/pkg/identity"
)

type memStore struct {
	alerts []Alert
}

func (s *memStore) Create(ctx context.Context, alert *Alert) error {
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*Alert, error) {
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			a := s.alerts[i]
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) ListByPatient(ctx context.Context, patientID string, includeResolved bool, limit int) ([]Alert, error) {
	var out []Alert
	for _, a := range s.alerts {
		if a.PatientID != patientID {
			continue
		}
		if !includeResolved && a.Resolved {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *memStore) MarkResolved(ctx context.Context, id, resolvedBy, note string) (bool, error) {
	for i := range s.alerts {
		a := &s.alerts[i]
		if a.ID == id && !a.Resolved {
			now := time.Now().UTC()
			a.Resolved = true
			a.ResolvedAt = &now
			a.ResolvedBy = resolvedBy
			a.ResolutionNote = note
			return true, nil
		}
	}
	return false, nil
}

type memRecorder struct {
	entries []audit.Entry
	fail    error
}

func (r *memRecorder) Record(ctx context.Context, entry *audit.Entry) error {
	if r.fail != nil {
		return r.fail
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memRecorder) count(action string) int {
	n := 0
	for _, e := range r.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func newAlertService(t *testing.T) (*Service, *memStore, *memRecorder) {
	t.Helper()
	engine, err := NewEngine(DefaultRules())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	store := &memStore{}
	recorder := &memRecorder{}
	return NewService(engine, store, recorder, nil), store, recorder
}

func TestRaisePersistsAndAudits(t *testing.T) {
	svc, store, recorder := newAlertService(t)

	alertID, err := svc.Raise(context.Background(), "patient-1", "v-1", "glucose", 320)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alertID == "" {
		t.Fatal("expected an alert id for critical glucose")
	}

	if len(store.alerts) != 1 {
		t.Fatalf("expected 1 stored alert, got %d", len(store.alerts))
	}
	stored := store.alerts[0]
	if stored.Severity != SeverityCritical {
		t.Fatalf("expected critical severity, got %s", stored.Severity)
	}
	if stored.VitalID != "v-1" {
		t.Fatalf("expected vital reference, got %q", stored.VitalID)
	}
	if stored.TriggerValue != 320 {
		t.Fatalf("expected trigger value 320, got %v", stored.TriggerValue)
	}

	if recorder.count(audit.ActionAlertCreated) != 1 {
		t.Fatal("expected one alert_created audit entry")
	}
}

func TestRaiseNormalValueIsSilent(t *testing.T) {
	svc, store, recorder := newAlertService(t)

	alertID, err := svc.Raise(context.Background(), "patient-1", "v-1", "glucose", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alertID != "" {
		t.Fatalf("expected no alert for normal glucose, got %q", alertID)
	}
	if len(store.alerts) != 0 {
		t.Fatal("no alert row should be stored for a normal value")
	}
	if len(recorder.entries) != 0 {
		t.Fatal("no audit entry should be written for a normal value")
	}
}

func TestRaiseFailsWhenAuditFails(t *testing.T) {
	svc, _, recorder := newAlertService(t)
	recorder.fail = errors.New("audit store down")

	_, err := svc.Raise(context.Background(), "patient-1", "v-1", "spo2", 85)
	if err == nil {
		t.Fatal("an unaudited alert must not complete")
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	svc, _, recorder := newAlertService(t)
	clinician := identity.Actor{ID: "dr-lee", Role: "doctor"}

	alertID, err := svc.Raise(context.Background(), "patient-1", "v-1", "heart_rate", 130)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), clinician, alertID, "reviewed, resting tachycardia")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resolved.Resolved {
		t.Fatal("expected alert marked resolved")
	}
	if resolved.ResolvedBy != "dr-lee" {
		t.Fatalf("expected resolver recorded, got %q", resolved.ResolvedBy)
	}

	if _, err := svc.Resolve(context.Background(), clinician, alertID, "again"); err != nil {
		t.Fatalf("repeat resolve must be a no-op: %v", err)
	}
	if recorder.count(audit.ActionAlertResolved) != 1 {
		t.Fatal("repeat resolve must not be re-audited")
	}
}

func TestListFiltersResolved(t *testing.T) {
	svc, _, _ := newAlertService(t)
	clinician := identity.Actor{ID: "dr-lee", Role: "doctor"}

	first, err := svc.Raise(context.Background(), "patient-1", "v-1", "glucose", 320)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Raise(context.Background(), "patient-1", "v-2", "spo2", 88); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), clinician, first, "treated"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	open, err := svc.List(context.Background(), "patient-1", false, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open alert, got %d", len(open))
	}

	all, err := svc.List(context.Background(), "patient-1", true, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 alerts including resolved, got %d", len(all))
	}
}
