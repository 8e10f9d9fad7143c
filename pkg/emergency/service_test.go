package emergency

import (
	"context"
	"testing"
	"time"

	"github.com/carelink/platform/pkg/audit"
	"github.com/carelink/platform/pkg/identity"
)

type memStore struct {
	overrides []Override
}

func (s *memStore) Create(ctx context.Context, o *Override) error {
	s.overrides = append(s.overrides, *o)
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*Override, error) {
	for i := range s.overrides {
		if s.overrides[i].ID == id {
			o := s.overrides[i]
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) ListCurrent(ctx context.Context, patientID string) ([]Override, error) {
	var out []Override
	for i := len(s.overrides) - 1; i >= 0; i-- {
		o := s.overrides[i]
		if o.PatientID == patientID && !o.Terminated {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) ListActive(ctx context.Context, now time.Time) ([]Override, error) {
	var out []Override
	for _, o := range s.overrides {
		if o.StateAt(now) == StateActive {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) MarkTerminated(ctx context.Context, id, terminatedBy, reason string) (bool, error) {
	for i := range s.overrides {
		o := &s.overrides[i]
		if o.ID == id && !o.Terminated {
			now := time.Now().UTC()
			o.Terminated = true
			o.TerminatedAt = &now
			o.TerminatedBy = terminatedBy
			o.TerminationReason = reason
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) MarkExpiryAudited(ctx context.Context, id string) (bool, error) {
	for i := range s.overrides {
		o := &s.overrides[i]
		if o.ID == id && !o.ExpiryAudited {
			o.ExpiryAudited = true
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) RecordAccess(ctx context.Context, id string) error {
	for i := range s.overrides {
		if s.overrides[i].ID == id {
			now := time.Now().UTC()
			s.overrides[i].AccessCount++
			s.overrides[i].LastAccessedAt = &now
		}
	}
	return nil
}

type memRecorder struct {
	entries []audit.Entry
}

func (r *memRecorder) Record(ctx context.Context, entry *audit.Entry) error {
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

var responder = identity.Actor{ID: "medic-7", Role: "doctor"}

func newOverrideService() (*Service, *memStore, *memRecorder) {
	store := &memStore{}
	recorder := &memRecorder{}
	return NewService(store, recorder, 2*time.Hour), store, recorder
}

func TestStateAtDerivation(t *testing.T) {
	granted := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	o := Override{GrantedAt: granted, ExpiresAt: granted.Add(2 * time.Hour)}

	if got := o.StateAt(granted.Add(time.Hour)); got != StateActive {
		t.Fatalf("expected active inside window, got %s", got)
	}
	if got := o.StateAt(granted.Add(2 * time.Hour)); got != StateExpired {
		t.Fatalf("expected expired exactly at expiry, got %s", got)
	}
	if got := o.StateAt(granted.Add(3 * time.Hour)); got != StateExpired {
		t.Fatalf("expected expired past window, got %s", got)
	}

	o.Terminated = true
	if got := o.StateAt(granted.Add(3 * time.Hour)); got != StateTerminated {
		t.Fatalf("termination must take precedence over expiry, got %s", got)
	}
}

func TestTriggerOpensTimedWindow(t *testing.T) {
	svc, _, recorder := newOverrideService()
	ctx := context.Background()

	override, err := svc.Trigger(ctx, responder, "patient-1", "unresponsive at home", "emergency", "ward 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := override.ExpiresAt.Sub(override.GrantedAt); got != 2*time.Hour {
		t.Fatalf("expected 2h window, got %v", got)
	}
	if recorder.count(audit.ActionOverrideTriggered) != 1 {
		t.Fatal("expected override_triggered audit entry")
	}

	active, err := svc.Active(ctx, "patient-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active == nil || active.ID != override.ID {
		t.Fatal("expected the triggered override to be active")
	}
}

func TestActiveExpiresLazily(t *testing.T) {
	svc, _, recorder := newOverrideService()
	ctx := context.Background()

	override, err := svc.Trigger(ctx, responder, "patient-1", "cardiac arrest", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.now = func() time.Time { return override.ExpiresAt.Add(time.Minute) }

	active, err := svc.Active(ctx, "patient-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active != nil {
		t.Fatal("expected no active override after expiry")
	}
	if recorder.count(audit.ActionOverrideExpired) != 1 {
		t.Fatal("expected one override_expired audit entry")
	}

	// Observing the expiry again must not re-audit it.
	if _, err := svc.Active(ctx, "patient-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorder.count(audit.ActionOverrideExpired) != 1 {
		t.Fatal("expiry audit must be one-time")
	}
}

func TestTerminateEndsOverrideEarly(t *testing.T) {
	svc, _, recorder := newOverrideService()
	ctx := context.Background()

	override, err := svc.Trigger(ctx, responder, "patient-1", "seizure", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	terminated, err := svc.Terminate(ctx, responder, override.ID, "patient stabilized")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !terminated.Terminated {
		t.Fatal("expected override marked terminated")
	}
	if recorder.count(audit.ActionOverrideTerminated) != 1 {
		t.Fatal("expected override_terminated audit entry")
	}

	active, err := svc.Active(ctx, "patient-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active != nil {
		t.Fatal("terminated override must not be active")
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	svc, _, recorder := newOverrideService()
	ctx := context.Background()

	override, err := svc.Trigger(ctx, responder, "patient-1", "seizure", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Terminate(ctx, responder, override.ID, "stabilized"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Terminate(ctx, responder, override.ID, "again"); err != nil {
		t.Fatalf("repeat termination must be a no-op: %v", err)
	}

	if recorder.count(audit.ActionOverrideTerminated) != 1 {
		t.Fatal("repeat termination must not be re-audited")
	}
}

func TestRecordAccessCountsReads(t *testing.T) {
	svc, store, _ := newOverrideService()
	ctx := context.Background()

	override, err := svc.Trigger(ctx, responder, "patient-1", "fall detected", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.RecordAccess(ctx, override.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RecordAccess(ctx, override.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := store.Get(ctx, override.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.AccessCount != 2 {
		t.Fatalf("expected access count 2, got %d", stored.AccessCount)
	}
}

func TestListActiveAcrossPatients(t *testing.T) {
	svc, _, _ := newOverrideService()
	ctx := context.Background()

	if _, err := svc.Trigger(ctx, responder, "patient-1", "a", "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Trigger(ctx, responder, "patient-2", "b", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Terminate(ctx, responder, second.ID, "done"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active override, got %d", len(active))
	}
	if active[0].PatientID != "patient-1" {
		t.Fatalf("expected patient-1's override, got %s", active[0].PatientID)
	}
}
