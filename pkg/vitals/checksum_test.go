package vitals

import (
	"testing"
	"time"
)

func TestDigestIsStableAcrossTimezones(t *testing.T) {
	recorded := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	loc := time.FixedZone("CET", 3600)

	a := Digest("patient-1", TypeGlucose, 120, "mg/dL", recorded)
	b := Digest("patient-1", TypeGlucose, 120, "mg/dL", recorded.In(loc))
	if a != b {
		t.Fatalf("digest changed with timezone rendering: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestVerifyDigestDetectsTampering(t *testing.T) {
	recorded := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	sum := Digest("patient-1", TypeGlucose, 120, "mg/dL", recorded)

	if !VerifyDigest("patient-1", TypeGlucose, 120, "mg/dL", recorded, sum) {
		t.Fatal("expected digest to verify against its own fields")
	}
	if VerifyDigest("patient-1", TypeGlucose, 121, "mg/dL", recorded, sum) {
		t.Fatal("expected digest mismatch after value change")
	}
	if VerifyDigest("patient-2", TypeGlucose, 120, "mg/dL", recorded, sum) {
		t.Fatal("expected digest mismatch after patient change")
	}
}

func TestDedupKeyDependsOnIdentityTuple(t *testing.T) {
	recorded := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	a := DedupKey("patient-1", TypeHeartRate, recorded, SourceDevice, "abc")
	b := DedupKey("patient-1", TypeHeartRate, recorded, SourceDevice, "abc")
	if a != b {
		t.Fatal("same tuple must derive the same key")
	}

	c := DedupKey("patient-1", TypeHeartRate, recorded, SourceManual, "abc")
	if a == c {
		t.Fatal("different source must derive a different key")
	}

	d := DedupKey("patient-1", TypeHeartRate, recorded.Add(time.Second), SourceDevice, "abc")
	if a == d {
		t.Fatal("different timestamp must derive a different key")
	}
}
