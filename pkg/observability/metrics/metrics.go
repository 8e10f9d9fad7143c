package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	ingestionAccepted  atomic.Int64
	ingestionRejected  atomic.Int64
	ingestionDuplicate atomic.Int64
	alertsRaised       atomic.Int64
	accessGranted      atomic.Int64
	accessDenied       atomic.Int64
	overridesTriggered atomic.Int64
)

func IncIngestionAccepted()  { ingestionAccepted.Add(1) }
func IncIngestionRejected()  { ingestionRejected.Add(1) }
func IncIngestionDuplicate() { ingestionDuplicate.Add(1) }
func IncAlertsRaised()       { alertsRaised.Add(1) }
func IncAccessGranted()      { accessGranted.Add(1) }
func IncAccessDenied()       { accessDenied.Add(1) }
func IncOverridesTriggered() { overridesTriggered.Add(1) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP carelink_ingestion_accepted_total Measurements accepted by the ingestion pipeline.\n")
	fmt.Fprintf(w, "# TYPE carelink_ingestion_accepted_total counter\n")
	fmt.Fprintf(w, "carelink_ingestion_accepted_total %d\n", ingestionAccepted.Load())

	fmt.Fprintf(w, "# HELP carelink_ingestion_rejected_total Measurements rejected per item (invalid payload or checksum mismatch).\n")
	fmt.Fprintf(w, "# TYPE carelink_ingestion_rejected_total counter\n")
	fmt.Fprintf(w, "carelink_ingestion_rejected_total %d\n", ingestionRejected.Load())

	fmt.Fprintf(w, "# HELP carelink_ingestion_duplicate_total Measurements skipped as idempotent duplicates.\n")
	fmt.Fprintf(w, "# TYPE carelink_ingestion_duplicate_total counter\n")
	fmt.Fprintf(w, "carelink_ingestion_duplicate_total %d\n", ingestionDuplicate.Load())

	fmt.Fprintf(w, "# HELP carelink_alerts_raised_total Clinical alerts derived from accepted measurements.\n")
	fmt.Fprintf(w, "# TYPE carelink_alerts_raised_total counter\n")
	fmt.Fprintf(w, "carelink_alerts_raised_total %d\n", alertsRaised.Load())

	fmt.Fprintf(w, "# HELP carelink_access_granted_total Authorization decisions that allowed access.\n")
	fmt.Fprintf(w, "# TYPE carelink_access_granted_total counter\n")
	fmt.Fprintf(w, "carelink_access_granted_total %d\n", accessGranted.Load())

	fmt.Fprintf(w, "# HELP carelink_access_denied_total Authorization decisions that denied access.\n")
	fmt.Fprintf(w, "# TYPE carelink_access_denied_total counter\n")
	fmt.Fprintf(w, "carelink_access_denied_total %d\n", accessDenied.Load())

	fmt.Fprintf(w, "# HELP carelink_overrides_triggered_total Emergency overrides triggered.\n")
	fmt.Fprintf(w, "# TYPE carelink_overrides_triggered_total counter\n")
	fmt.Fprintf(w, "carelink_overrides_triggered_total %d\n", overridesTriggered.Load())
}

func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WritePrometheus(w)
	}
}
