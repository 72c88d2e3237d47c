package alert

import (
	"context"
	"strings"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/logger"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Aggregator applies status updates from the reporter and notified contacts.
// Identical rapid calls are not deduplicated here; clients suppress their own
// repeats while a call is in flight.
type Aggregator struct {
	store   Store
	fanout  *Fanout
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

func NewAggregator(st Store, fanout *Fanout, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		store:   st,
		fanout:  fanout,
		metrics: m,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// SetClock replaces time.Now.
func (g *Aggregator) SetClock(now func() time.Time) {
	g.now = now
}

// UpdateStatus appends one response log entry and moves the alert to status.
// Repeating contacted on a contacted alert only appends the entry.
func (g *Aggregator) UpdateStatus(ctx context.Context, alertID string, status models.AlertStatus, actor models.Actor, note string) (*models.Alert, error) {
	if strings.TrimSpace(alertID) == "" {
		return nil, errors.Validation("alert id is required")
	}
	if actor.ID == "" {
		return nil, errors.Validation("acting identity is required")
	}

	var entry models.AlertResponse
	a, err := g.store.UpdateAtomic(ctx, alertID, func(a *models.Alert) error {
		if err := authorize(a, actor); err != nil {
			return err
		}
		if err := models.CheckTransition(a.Status, status, actor.Role); err != nil {
			return err
		}

		now := g.now()
		entry = models.AlertResponse{
			ID:             g.newID(),
			AlertID:        a.ID,
			Seq:            len(a.ResponseLog) + 1,
			ContactID:      actor.ID,
			ContactName:    displayName(a, actor),
			ActorRole:      actor.Role,
			PreviousStatus: a.Status,
			NewStatus:      status,
			Note:           note,
			Timestamp:      now,
		}
		a.ResponseLog = append(a.ResponseLog, entry)

		if models.IsAcknowledgement(a.Status, status) {
			return nil
		}
		a.Status = status
		if status.Terminal() && a.ResolvedAt == nil {
			a.ResolvedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.metrics.StatusUpdated(string(status))
	logger.Info("alert status updated",
		zap.String("alert_id", a.ID),
		zap.String("actor", actor.Channel()),
		zap.String("from", string(entry.PreviousStatus)),
		zap.String("to", string(status)))

	g.fanout.StatusUpdate(a, entry)
	return a, nil
}

func displayName(a *models.Alert, actor models.Actor) string {
	if actor.Name != "" {
		return actor.Name
	}
	if actor.Role == models.RoleUser {
		return a.Reporter.Name
	}
	for _, nc := range a.NotifiedContacts {
		if nc.ContactID == actor.ID {
			return nc.ContactName
		}
	}
	return ""
}
