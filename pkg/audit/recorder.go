package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/carelink/platform/pkg/common/logger"
	"github.com/google/uuid"
)

// Store is the durable append-only sink behind the Recorder.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

// Stream receives a secondary best-effort copy of every entry, e.g. a Kafka
// topic consumed by compliance tooling.
type Stream interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Recorder writes audit entries. The database append is the durable record:
// if it fails, Record returns the error and the caller must fail the
// operation that triggered it. The stream copy is best-effort only.
type Recorder struct {
	store  Store
	stream Stream
}

func NewRecorder(store Store, stream Stream) *Recorder {
	return &Recorder{store: store, stream: stream}
}

func (r *Recorder) Record(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := r.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}

	if r.stream != nil {
		data := map[string]interface{}{
			"entry_id":      entry.ID,
			"action":        entry.Action,
			"actor_id":      entry.ActorID,
			"resource_type": entry.ResourceType,
			"resource_id":   entry.ResourceID,
			"success":       entry.Success,
			"created_at":    entry.CreatedAt,
		}
		if err := r.stream.PublishEvent(ctx, "audit", entry.Action, data); err != nil {
			logger.Log.WithError(err).WithField("entry_id", entry.ID).Warn("audit stream publish failed")
		}
	}

	return nil
}
