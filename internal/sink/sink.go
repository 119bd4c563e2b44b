package sink

import (
	"context"

	"go.uber.org/zap"

	"marketscanner/internal/scanner"
)

// Sink is the Orchestrator's single handle onto both external collaborators
// from spec §4.9/§6: the deduplicating Event Store and the chat
// Notification Sink. A phase calls Handle once per SymbolResult; Sink
// decides what, if anything, gets written or broadcast.
type Sink struct {
	logger   *zap.Logger
	store    *EventStore
	notifier *Notifier
}

// New builds a Sink over an already-constructed EventStore and Notifier.
// Either may be nil: a nil store skips persistence, a nil notifier (or one
// built with enabled=false) skips broadcasting — both are valid
// configurations (spec §4.8's Config.SendNotifications toggle).
func New(logger *zap.Logger, store *EventStore, notifier *Notifier) *Sink {
	return &Sink{logger: logger, store: store, notifier: notifier}
}

// Handle maps sr onto zero or more EventRecords, inserts each with
// dedup-on-key semantics, and — for records newly inserted — broadcasts a
// summary. A record that was already present (a re-scan of the same bar)
// is neither re-notified nor double-counted, per spec §5's "deduplication
// is by composite key" ordering guarantee.
func (s *Sink) Handle(ctx context.Context, sr scanner.SymbolResult) error {
	records := BuildRecords(sr)
	if len(records) == 0 {
		return nil
	}

	for _, rec := range records {
		if s.store != nil {
			inserted, err := s.store.Insert(ctx, rec)
			if err != nil {
				s.logger.Warn("event store insert failed, continuing with remaining records",
					zap.String("key", rec.Key()), zap.Error(err))
				continue
			}
			if !inserted {
				continue
			}
		}

		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, SummarizeRecord(rec)); err != nil {
				s.logger.Warn("notification failed",
					zap.String("key", rec.Key()), zap.Error(err))
			}
		}
	}
	return nil
}
