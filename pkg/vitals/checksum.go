package vitals

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Digest computes the integrity checksum over a measurement's canonical
// fields. Offline clients compute the same digest before upload so that
// corruption in transit or storage is detected at ingestion time.
func Digest(patientID, vitalType string, value float64, unit string, recordedAt time.Time) string {
	canonical := strings.Join([]string{
		patientID,
		vitalType,
		strconv.FormatFloat(value, 'f', -1, 64),
		unit,
		recordedAt.UTC().Format(time.RFC3339Nano),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// VerifyDigest recomputes the digest and compares it with the caller-supplied
// one. A mismatch rejects the item, it is never fatal to a batch.
func VerifyDigest(patientID, vitalType string, value float64, unit string, recordedAt time.Time, claimed string) bool {
	return Digest(patientID, vitalType, value, unit, recordedAt) == claimed
}

// DedupKey derives the duplicate-index key from the canonical identity tuple.
func DedupKey(patientID, vitalType string, recordedAt time.Time, source, checksum string) string {
	canonical := strings.Join([]string{
		patientID,
		vitalType,
		recordedAt.UTC().Format(time.RFC3339Nano),
		source,
		checksum,
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return "vitals:dedup:" + hex.EncodeToString(sum[:])
}
