// Package notify holds the delivery sinks behind the notification service.
package notify

import (
	"context"

	"marketplace-settlement/internal/core/domain"

	"github.com/rs/zerolog"
)

// LogSink writes events to the structured log. It is the default sink when
// no downstream collaborator is configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("sink", "log").Logger()}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, event domain.NotificationEvent) error {
	s.log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("subject_id", event.SubjectID.String()).
		Str("owner_id", event.OwnerID.String()).
		Int64("amount", event.Amount).
		Time("occurred_at", event.OccurredAt).
		Msg("notification")
	return nil
}
