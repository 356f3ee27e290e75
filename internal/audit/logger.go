// Package audit provides the structured audit sink for workflow actions and
// event-pipeline outcomes. Entries are zerolog records tagged audit=true so
// they can be filtered out of the application stream downstream.
package audit

import (
	"github.com/rs/zerolog"
)

type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// Log records a generic action with free-form metadata.
func (l *Logger) Log(action, actorID string, meta map[string]string) {
	ev := l.log.Info().Str("action", action).Str("actor_id", actorID)
	for k, v := range meta {
		ev = ev.Str(k, v)
	}
	ev.Msg("audit")
}

// --- workflow actions ---

func (l *Logger) QuotationCreated(quotationID, actorID string) {
	l.log.Info().
		Str("action", "quotation_created").
		Str("quotation_id", quotationID).
		Str("actor_id", actorID).
		Msg("Quotation created")
}

func (l *Logger) ProgressSubmitted(quotationID, actorID string, pending bool) {
	l.log.Info().
		Str("action", "progress_submitted").
		Str("quotation_id", quotationID).
		Str("actor_id", actorID).
		Bool("pending_approval", pending).
		Msg("Progress update submitted")
}

func (l *Logger) StageApproved(quotationID, reviewerID string, index int) {
	l.log.Info().
		Str("action", "stage_approved").
		Str("quotation_id", quotationID).
		Str("actor_id", reviewerID).
		Int("update_index", index).
		Msg("Pending update approved")
}

func (l *Logger) StageRejected(quotationID, reviewerID string, index int, reason string) {
	l.log.Warn().
		Str("action", "stage_rejected").
		Str("quotation_id", quotationID).
		Str("actor_id", reviewerID).
		Int("update_index", index).
		Str("reason", reason).
		Msg("Pending update rejected")
}

// --- pipeline outcomes, keyed by event name and message id ---

func (l *Logger) MessageProcessed(eventName, messageID string) {
	l.log.Info().
		Str("action", "message_processed").
		Str("event", eventName).
		Str("message_id", messageID).
		Msg("Message handled")
}

func (l *Logger) MessageRetried(eventName, messageID string, attempt int) {
	l.log.Warn().
		Str("action", "message_retried").
		Str("event", eventName).
		Str("message_id", messageID).
		Int("retry_count", attempt).
		Msg("Message re-published for retry")
}

func (l *Logger) MessageDeadLettered(eventName, messageID string, attempts int) {
	l.log.Error().
		Str("action", "message_dead_lettered").
		Str("event", eventName).
		Str("message_id", messageID).
		Int("retry_count", attempts).
		Msg("Message forwarded to DLQ")
}

func (l *Logger) MessageDropped(eventName, messageID, reason string) {
	l.log.Warn().
		Str("action", "message_dropped").
		Str("event", eventName).
		Str("message_id", messageID).
		Str("reason", reason).
		Msg("Message acked and dropped")
}
