package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// Notifier delivers an applied transition to whoever reacts to it
// (mailer, payout processing).
type Notifier interface {
	Notify(ctx context.Context, event EventJobArgs) error
}

// LogNotifier writes each event to a structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, event EventJobArgs) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "entity transitioned",
		"tenant_id", event.TenantID,
		"entity_type", event.EntityType,
		"entity_id", event.EntityID,
		"from", event.From,
		"to", event.To,
		"actor_id", event.ActorID,
		"record_id", event.RecordID,
	)
	return nil
}

// EventWorker processes transition jobs from the River queue.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
	notifier Notifier
}

// Work hands a single event to the notifier. A returned error makes River
// retry the job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.DebugContext(ctx, "processing event",
		"kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.notifier.Notify(ctx, job.Args)
}
