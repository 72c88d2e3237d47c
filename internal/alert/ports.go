package alert

import (
	"context"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/internal/store"
)

// Store is the alert record store. UpdateAtomic must be linearizable per id.
type Store interface {
	Create(ctx context.Context, alert *models.Alert) error
	FindByID(ctx context.Context, id string) (*models.Alert, error)
	UpdateAtomic(ctx context.Context, id string, mutate func(*models.Alert) error) (*models.Alert, error)
	UpdateDelivery(ctx context.Context, alertID string, outcome map[string]models.DeliveryStatus) error
	Find(ctx context.Context, f store.Filter) ([]models.Alert, error)
	CountOpen(ctx context.Context) (int64, error)
}

// Transport pushes one event to every connected session of identity.
// A nil error means at least one session accepted it.
type Transport interface {
	Send(identity, event string, payload interface{}) error
}

var _ Store = (*store.AlertStore)(nil)
