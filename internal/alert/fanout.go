package alert

import (
	stderrors "errors"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/logger"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/messaging"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/metrics"
	"go.uber.org/zap"
)

// Fanout delivers alert events over every configured transport. Delivery is
// best-effort and at-most-once per connected session; offline recipients are
// logged and skipped.
type Fanout struct {
	transports []Transport
	metrics    *metrics.Metrics
}

func NewFanout(m *metrics.Metrics, transports ...Transport) *Fanout {
	return &Fanout{transports: transports, metrics: m}
}

// NewAlert notifies each contact of the snapshot and reports per-contact outcome.
func (f *Fanout) NewAlert(a *models.Alert) map[string]models.DeliveryStatus {
	event := models.NewAlertEventFor(a)
	outcome := make(map[string]models.DeliveryStatus, len(a.NotifiedContacts))
	for _, nc := range a.NotifiedContacts {
		outcome[nc.ContactID] = f.deliver(models.ContactChannel(nc.ContactID), models.EventNewAlert, event, a.ID)
	}
	return outcome
}

// StatusUpdate notifies the reporter and every notified contact, the actor included.
func (f *Fanout) StatusUpdate(a *models.Alert, entry models.AlertResponse) {
	event := models.StatusUpdateEventFor(a, entry)
	f.deliver(models.UserChannel(a.Reporter.ID), models.EventStatusUpdate, event, a.ID)
	for _, nc := range a.NotifiedContacts {
		f.deliver(models.ContactChannel(nc.ContactID), models.EventStatusUpdate, event, a.ID)
	}
}

func (f *Fanout) deliver(identity, event string, payload interface{}, alertID string) models.DeliveryStatus {
	result := models.DeliveryOffline
	for _, t := range f.transports {
		err := t.Send(identity, event, payload)
		switch {
		case err == nil:
			result = models.DeliveryDelivered
		case stderrors.Is(err, messaging.ErrRelayed):
			if result == models.DeliveryOffline {
				result = models.DeliveryRelayed
			}
		default:
			logger.Debug("transport send failed",
				zap.String("identity", identity),
				zap.String("event", event),
				zap.Error(err))
		}
	}

	f.metrics.Delivered(event, string(result))
	if result == models.DeliveryOffline {
		logger.Warn("recipient offline, event dropped",
			zap.String("alert_id", alertID),
			zap.String("identity", identity),
			zap.String("event", event))
	}
	return result
}
