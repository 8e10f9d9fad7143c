package vitals

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/carelink/platform/pkg/common/logger"
	"github.com/carelink/platform/pkg/common/models"
	"github.com/carelink/platform/pkg/identity"
	"github.com/gorilla/mux"
)

// DevicePayload is the fault-tolerant ingestion shape for gateway devices
// and wearables. Every reading is optional; a payload is only rejected when
// it identifies no device or patient, or carries no readings at all.
// Missing optional fields are never a reason to reject the payload.
type DevicePayload struct {
	DeviceID   string     `json:"device_id"`
	PatientID  string     `json:"patient_id"`
	BatchID    string     `json:"batch_id,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`

	HeartRate       *float64 `json:"heart_rate,omitempty"`
	BPSystolic      *float64 `json:"bp_systolic,omitempty"`
	BPDiastolic     *float64 `json:"bp_diastolic,omitempty"`
	SpO2            *float64 `json:"spo2,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	Glucose         *float64 `json:"glucose,omitempty"`
	Weight          *float64 `json:"weight,omitempty"`
	Height          *float64 `json:"height,omitempty"`
	BMI             *float64 `json:"bmi,omitempty"`
	RespiratoryRate *float64 `json:"respiratory_rate,omitempty"`
	Steps           *float64 `json:"steps,omitempty"`
	SleepHours      *float64 `json:"sleep_hours,omitempty"`
	Calories        *float64 `json:"calories,omitempty"`
	ECG             *string  `json:"ecg,omitempty"`
}

func (p DevicePayload) submissions() []models.VitalSubmission {
	recordedAt := time.Now().UTC()
	if p.RecordedAt != nil {
		recordedAt = p.RecordedAt.UTC()
	}

	readings := []struct {
		vitalType string
		value     *float64
	}{
		{TypeHeartRate, p.HeartRate},
		{TypeBPSystolic, p.BPSystolic},
		{TypeBPDiastolic, p.BPDiastolic},
		{TypeSpO2, p.SpO2},
		{TypeTemperature, p.Temperature},
		{TypeGlucose, p.Glucose},
		{TypeWeight, p.Weight},
		{TypeHeight, p.Height},
		{TypeBMI, p.BMI},
		{TypeRespiratoryRate, p.RespiratoryRate},
		{TypeSteps, p.Steps},
		{TypeSleepHours, p.SleepHours},
		{TypeCalories, p.Calories},
	}

	var subs []models.VitalSubmission
	for _, reading := range readings {
		if reading.value == nil {
			continue
		}
		subs = append(subs, models.VitalSubmission{
			PatientID:  p.PatientID,
			VitalType:  reading.vitalType,
			Value:      *reading.value,
			Source:     SourceDevice,
			SourceID:   p.DeviceID,
			RecordedAt: recordedAt,
		})
	}

	if p.ECG != nil {
		// ECG arrives as a raw waveform string; it is stored in the notes
		// column with a placeholder numeric value.
		subs = append(subs, models.VitalSubmission{
			PatientID:  p.PatientID,
			VitalType:  TypeECG,
			Value:      0.0,
			Source:     SourceDevice,
			SourceID:   p.DeviceID,
			RecordedAt: recordedAt,
			Notes:      *p.ECG,
		})
	}

	return subs
}

// DeviceHandler serves the gateway-device ingestion path. Devices
// authenticate out of band through the device registry, not via OIDC.
type DeviceHandler struct {
	service *Service
}

func NewDeviceHandler(service *Service) *DeviceHandler {
	return &DeviceHandler{service: service}
}

func (h *DeviceHandler) Register(router *mux.Router) {
	router.HandleFunc("/devices/ingest", h.handleIngest).Methods(http.MethodPost)
}

func (h *DeviceHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload DevicePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if payload.DeviceID == "" || payload.PatientID == "" {
		http.Error(w, "device_id and patient_id required", http.StatusBadRequest)
		return
	}

	subs := payload.submissions()
	if len(subs) == 0 {
		http.Error(w, "payload carries no readings", http.StatusBadRequest)
		return
	}

	actor := identity.Actor{ID: payload.DeviceID, Role: "device"}
	result, err := h.service.IngestBatch(r.Context(), actor, models.BatchSubmission{
		BatchID: payload.BatchID,
		Vitals:  subs,
	})
	if err != nil {
		logger.Log.WithError(err).Error("failed to ingest device payload")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
