package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/flok/internal/adapters/mq/queue"
	"github.com/okian/flok/internal/domain/model"
	"github.com/okian/flok/pkg/logger"
	"github.com/okian/flok/pkg/metrics"
)

// Receipt reports what happened to a submitted interaction.
type Receipt struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
	// Queued is false when the queue rejected the interaction.
	Queued bool `json:"queued"`
}

// normalize assigns an id and timestamp when the caller left them empty.
func (s *Service) normalize(in model.Interaction) (model.Interaction, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.At.IsZero() {
		in.At = s.now()
	}
	if err := in.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

// SeenAndRecord atomically checks if an interaction id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordDuplicate()
	}
	return seen
}

// RecordInteraction applies an interaction synchronously. Each id is
// applied at most once; a repeated id is reported as a duplicate.
func (s *Service) RecordInteraction(ctx context.Context, in model.Interaction) (Receipt, error) {
	if _, err := s.running(); err != nil {
		return Receipt{}, err
	}
	in, err := s.normalize(in)
	if err != nil {
		metrics.RecordRejected()
		return Receipt{}, err
	}
	if s.SeenAndRecord(ctx, in.ID) {
		return Receipt{ID: in.ID, Duplicate: true}, nil
	}
	if err := s.Apply(ctx, in); err != nil {
		s.deduper.Unrecord(ctx, in.ID)
		return Receipt{}, err
	}
	return Receipt{ID: in.ID}, nil
}

// Apply updates the demand ledger and appends to the interaction log. It
// does not deduplicate; workers call it for interactions already admitted
// by Enqueue. A log failure is reported but never undoes the ledger update.
func (s *Service) Apply(ctx context.Context, in model.Interaction) error {
	start := time.Now()
	if _, err := s.ledger.Update(ctx, in.OpportunityID, in.Kind, in.At); err != nil {
		return fmt.Errorf("apply interaction: %w", err)
	}
	metrics.RecordLedgerLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordInteraction(string(in.Kind))

	if l := s.interactionLog(); l != nil {
		if err := l.Append(ctx, in); err != nil {
			metrics.RecordAuditError()
			s.logger.Warn(ctx, "failed to log interaction",
				logger.String("id", in.ID),
				logger.Error(err),
			)
		}
	}
	return nil
}

// Enqueue submits an interaction for asynchronous processing. Duplicates
// are acknowledged without queueing; a full queue returns Queued=false and
// forgets the id so the caller can retry.
func (s *Service) Enqueue(ctx context.Context, in model.Interaction) (Receipt, error) {
	s.mu.RLock()
	q, started := s.eventQueue, s.started
	s.mu.RUnlock()
	if !started || q.IsClosed() {
		return Receipt{}, fmt.Errorf("enqueue: %w", eventqueue.ErrClosed)
	}

	in, err := s.normalize(in)
	if err != nil {
		metrics.RecordRejected()
		return Receipt{}, err
	}
	if s.SeenAndRecord(ctx, in.ID) {
		s.logger.Debug(ctx, "duplicate interaction detected, skipping",
			logger.String("id", in.ID),
		)
		return Receipt{ID: in.ID, Duplicate: true}, nil
	}
	if !q.Enqueue(ctx, in) {
		s.deduper.Unrecord(ctx, in.ID)
		s.logger.Debug(ctx, "interaction rejected by full queue",
			logger.String("id", in.ID),
		)
		return Receipt{ID: in.ID}, nil
	}
	return Receipt{ID: in.ID, Queued: true}, nil
}

// record applies a service-generated interaction and logs failures.
func (s *Service) record(ctx context.Context, userID, opportunityID string, kind model.Kind) {
	_, err := s.RecordInteraction(ctx, model.Interaction{
		UserID:        userID,
		OpportunityID: opportunityID,
		Kind:          kind,
	})
	if err != nil {
		s.logger.Warn(ctx, "failed to record interaction",
			logger.String("kind", string(kind)),
			logger.String("opportunity", opportunityID),
			logger.Error(err),
		)
	}
}
