package vitals

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/carelink/platform/pkg/audit"
	"github.com/carelink/platform/pkg/common/models"
	"github.com/carelink/platform/pkg/identity"
)

type memStore struct {
	rows       []Measurement
	seen       map[string]struct{}
	failCreate error
}

func newMemStore() *memStore {
	return &memStore{seen: map[string]struct{}{}}
}

func identityKey(m *Measurement) string {
	return strings.Join([]string{m.PatientID, m.VitalType, m.RecordedAt.UTC().Format(time.RFC3339Nano), m.Source, m.Checksum}, "|")
}

func (s *memStore) CreateIfAbsent(ctx context.Context, m *Measurement) (bool, error) {
	if s.failCreate != nil {
		return false, s.failCreate
	}
	key := identityKey(m)
	if _, dup := s.seen[key]; dup {
		return false, nil
	}
	s.seen[key] = struct{}{}
	s.rows = append(s.rows, *m)
	return true, nil
}

func (s *memStore) ListByPatient(ctx context.Context, patientID, vitalType string, limit int) ([]Measurement, error) {
	var out []Measurement
	for _, m := range s.rows {
		if m.PatientID == patientID && (vitalType == "" || m.VitalType == vitalType) {
			out = append(out, m)
		}
	}
	return out, nil
}

type memReserver struct {
	held     map[string]struct{}
	released []string
}

func newMemReserver() *memReserver {
	return &memReserver{held: map[string]struct{}{}}
}

func (r *memReserver) Reserve(ctx context.Context, key string) (bool, error) {
	if _, taken := r.held[key]; taken {
		return false, nil
	}
	r.held[key] = struct{}{}
	return true, nil
}

func (r *memReserver) Release(ctx context.Context, key string) {
	delete(r.held, key)
	r.released = append(r.released, key)
}

type stubAlerts struct {
	alertID string
	calls   int
}

func (a *stubAlerts) Raise(ctx context.Context, patientID, vitalID, vitalType string, value float64) (string, error) {
	a.calls++
	return a.alertID, nil
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

func (r *memRecorder) byAction(action string) []audit.Entry {
	var out []audit.Entry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type stubRegistry struct {
	known map[string]bool
}

func (s *stubRegistry) Exists(ctx context.Context, patientID string) (bool, error) {
	return s.known[patientID], nil
}

type pipeline struct {
	service  *Service
	store    *memStore
	reserver *memReserver
	alerts   *stubAlerts
	recorder *memRecorder
}

func newPipeline() *pipeline {
	p := &pipeline{
		store:    newMemStore(),
		reserver: newMemReserver(),
		alerts:   &stubAlerts{},
		recorder: &memRecorder{},
	}
	registry := &stubRegistry{known: map[string]bool{"patient-1": true, "patient-2": true}}
	p.service = NewService(NewValidator(), p.store, p.reserver, p.alerts, p.recorder, registry, 100)
	return p
}

var clinician = identity.Actor{ID: "dr-lee", Role: "doctor"}

func submission(value interface{}) models.VitalSubmission {
	return models.VitalSubmission{
		PatientID:  "patient-1",
		VitalType:  TypeHeartRate,
		Value:      value,
		RecordedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestIngestAcceptsAndAudits(t *testing.T) {
	p := newPipeline()
	p.alerts.alertID = "alert-1"

	outcome, err := p.service.Ingest(context.Background(), clinician, submission(72.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Reason != models.ReasonAccepted {
		t.Fatalf("expected accepted, got %s (%s)", outcome.Reason, outcome.Detail)
	}
	if outcome.VitalID == "" {
		t.Fatal("expected a vital id")
	}
	if outcome.AlertID != "alert-1" {
		t.Fatalf("expected alert id propagated, got %q", outcome.AlertID)
	}

	if len(p.store.rows) != 1 {
		t.Fatalf("expected 1 stored measurement, got %d", len(p.store.rows))
	}
	stored := p.store.rows[0]
	if stored.Unit != "bpm" {
		t.Fatalf("expected default unit bpm, got %q", stored.Unit)
	}
	if stored.Source != SourceManual {
		t.Fatalf("expected default source manual, got %q", stored.Source)
	}
	if stored.UploadedBy != clinician.ID {
		t.Fatalf("expected uploader %q, got %q", clinician.ID, stored.UploadedBy)
	}

	accepted := p.recorder.byAction(audit.ActionIngestionAccepted)
	if len(accepted) != 1 {
		t.Fatalf("expected 1 ingestion_accepted entry, got %d", len(accepted))
	}
	if !accepted[0].Success {
		t.Fatal("accepted entry must be marked successful")
	}
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	p := newPipeline()

	outcome, err := p.service.Ingest(context.Background(), clinician, submission("not a number"))
	if err != nil {
		t.Fatalf("rejection must not surface as error: %v", err)
	}
	if outcome.Reason != models.ReasonInvalidPayload {
		t.Fatalf("expected invalid_payload, got %s", outcome.Reason)
	}
	if len(p.store.rows) != 0 {
		t.Fatal("rejected item must not be stored")
	}

	rejected := p.recorder.byAction(audit.ActionIngestionRejected)
	if len(rejected) != 1 {
		t.Fatalf("expected 1 ingestion_rejected entry, got %d", len(rejected))
	}
	if rejected[0].Success {
		t.Fatal("rejected entry must be marked unsuccessful")
	}
}

func TestIngestRejectsUnknownPatient(t *testing.T) {
	p := newPipeline()

	sub := submission(72.0)
	sub.PatientID = "patient-ghost"

	outcome, err := p.service.Ingest(context.Background(), clinician, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Reason != models.ReasonInvalidPayload {
		t.Fatalf("expected invalid_payload, got %s", outcome.Reason)
	}
	if outcome.Detail != "unknown patient" {
		t.Fatalf("expected unknown patient detail, got %q", outcome.Detail)
	}
}

func TestIngestVerifiesChecksum(t *testing.T) {
	p := newPipeline()

	sub := submission(72.0)
	sub.Unit = "bpm"
	sub.Checksum = Digest(sub.PatientID, sub.VitalType, 72, sub.Unit, sub.RecordedAt)

	outcome, err := p.service.Ingest(context.Background(), clinician, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Reason != models.ReasonAccepted {
		t.Fatalf("valid checksum should be accepted, got %s (%s)", outcome.Reason, outcome.Detail)
	}

	tampered := submission(73.0)
	tampered.Unit = "bpm"
	tampered.Checksum = sub.Checksum

	outcome, err = p.service.Ingest(context.Background(), clinician, tampered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Reason != models.ReasonChecksumMismatch {
		t.Fatalf("expected checksum_mismatch, got %s", outcome.Reason)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	p := newPipeline()
	sub := submission(72.0)

	first, err := p.service.Ingest(context.Background(), clinician, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Reason != models.ReasonAccepted {
		t.Fatalf("first submit should be accepted, got %s", first.Reason)
	}

	second, err := p.service.Ingest(context.Background(), clinician, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Reason != models.ReasonSkippedDuplicate {
		t.Fatalf("resubmit should skip as duplicate, got %s", second.Reason)
	}

	if len(p.store.rows) != 1 {
		t.Fatalf("expected exactly 1 stored row, got %d", len(p.store.rows))
	}
	if p.alerts.calls != 1 {
		t.Fatalf("duplicate must not re-derive alerts, got %d calls", p.alerts.calls)
	}

	// The duplicate is still audited, flagged in context.
	dup := false
	for _, e := range p.recorder.byAction(audit.ActionIngestionAccepted) {
		if flagged, _ := e.Context["duplicate"].(bool); flagged {
			dup = true
		}
	}
	if !dup {
		t.Fatal("expected an audit entry flagging the duplicate")
	}
}

func TestIngestFallsBackToUniqueIndex(t *testing.T) {
	p := newPipeline()
	sub := submission(72.0)

	if _, err := p.service.Ingest(context.Background(), clinician, sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Reservation lost (e.g. cache flush): the unique index still catches
	// the replay.
	p.reserver.held = map[string]struct{}{}

	outcome, err := p.service.Ingest(context.Background(), clinician, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Reason != models.ReasonSkippedDuplicate {
		t.Fatalf("expected skipped_duplicate via index, got %s", outcome.Reason)
	}
	if len(p.store.rows) != 1 {
		t.Fatalf("expected exactly 1 stored row, got %d", len(p.store.rows))
	}
}

func TestIngestStaleReservationDoesNotLoseMeasurement(t *testing.T) {
	p := newPipeline()
	sub := submission(72.0)

	// A crash between reserving and inserting leaves the key held with no
	// row behind it. The retry must still persist.
	key := DedupKey(sub.PatientID, sub.VitalType, sub.RecordedAt, SourceManual, "")
	p.reserver.held[key] = struct{}{}

	outcome, err := p.service.Ingest(context.Background(), clinician, sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Reason != models.ReasonAccepted {
		t.Fatalf("retry behind a stale reservation must be accepted, got %s", outcome.Reason)
	}
	if len(p.store.rows) != 1 {
		t.Fatalf("expected the measurement persisted, got %d rows", len(p.store.rows))
	}
}

func TestIngestReleasesReservationOnStoreError(t *testing.T) {
	p := newPipeline()
	p.store.failCreate = errors.New("connection reset")

	_, err := p.service.Ingest(context.Background(), clinician, submission(72.0))
	if err == nil {
		t.Fatal("expected store error to surface")
	}
	if len(p.reserver.released) != 1 {
		t.Fatalf("expected reservation released on failure, got %d releases", len(p.reserver.released))
	}
}

func TestIngestFailsWhenAuditFails(t *testing.T) {
	p := newPipeline()
	p.recorder.fail = errors.New("audit store down")

	_, err := p.service.Ingest(context.Background(), clinician, submission(72.0))
	if err == nil {
		t.Fatal("an unaudited ingestion must not complete")
	}
}

func TestIngestBatchItemsAreIndependent(t *testing.T) {
	p := newPipeline()
	base := submission(72.0)

	batch := models.BatchSubmission{
		BatchID: "batch-9",
		Vitals: []models.VitalSubmission{
			base,
			{PatientID: "patient-1", VitalType: "nonsense", Value: 1.0, RecordedAt: base.RecordedAt},
			base, // duplicate of item 0
			{PatientID: "patient-2", VitalType: TypeGlucose, Value: 110.0, RecordedAt: base.RecordedAt},
		},
	}

	result, err := p.service.IngestBatch(context.Background(), clinician, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Accepted) != 2 {
		t.Fatalf("expected 2 accepted, got %d", len(result.Accepted))
	}
	if len(result.Rejected) != 1 {
		t.Fatalf("expected 1 rejected, got %d", len(result.Rejected))
	}
	if len(result.SkippedDuplicate) != 1 {
		t.Fatalf("expected 1 duplicate, got %d", len(result.SkippedDuplicate))
	}
	if result.BatchID != "batch-9" {
		t.Fatalf("expected caller batch id preserved, got %q", result.BatchID)
	}

	summaries := p.recorder.byAction(audit.ActionBatchIngested)
	if len(summaries) != 1 {
		t.Fatalf("expected 1 batch summary entry, got %d", len(summaries))
	}
}

func TestIngestBatchEnforcesSizeLimit(t *testing.T) {
	p := newPipeline()

	batch := models.BatchSubmission{Vitals: make([]models.VitalSubmission, 101)}
	_, err := p.service.IngestBatch(context.Background(), clinician, batch)
	if err == nil {
		t.Fatal("expected oversized batch to be refused")
	}
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestIngestBatchGeneratesBatchID(t *testing.T) {
	p := newPipeline()

	result, err := p.service.IngestBatch(context.Background(), clinician, models.BatchSubmission{
		Vitals: []models.VitalSubmission{submission(72.0)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BatchID == "" {
		t.Fatal("expected a generated batch id")
	}
	if p.store.rows[0].BatchID != result.BatchID {
		t.Fatal("stored measurement should carry the batch id")
	}
}
