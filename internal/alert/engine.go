package alert

import (
	"context"
	"strings"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/internal/store"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/logger"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine creates alerts and applies reinforcement presses.
type Engine struct {
	store   Store
	dir     store.Directory
	fanout  *Fanout
	metrics *metrics.Metrics
	now     func() time.Time
	window  time.Duration
	newID   func() string
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithReinforceWindow overrides the press-count decay window.
func WithReinforceWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(st Store, dir store.Directory, fanout *Fanout, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		dir:    dir,
		fanout: fanout,
		now:    time.Now,
		window: models.ReinforceWindow,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateAlert always inserts a new alert at the severity floor and notifies
// the reporter's active contacts. A reporter with no active contacts still
// gets a record; the alert is returned together with a validation error.
func (e *Engine) CreateAlert(ctx context.Context, reporterID, location, message string) (*models.Alert, error) {
	reporterID = strings.TrimSpace(reporterID)
	if reporterID == "" {
		return nil, errors.Validation("reporter id is required")
	}

	user, err := e.dir.GetUser(ctx, reporterID)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return nil, errors.Validation("unknown reporter %s", reporterID)
		}
		return nil, err
	}
	contacts, err := e.dir.ActiveContacts(ctx, reporterID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	a := &models.Alert{
		ID: e.newID(),
		Reporter: models.ReporterSnapshot{
			ID:    user.ID,
			Name:  user.Name,
			Phone: user.Phone,
			Email: user.Email,
		},
		Status:        models.StatusActive,
		PressCount:    1,
		LastPressTime: now,
		AlertLevel:    models.FloorLevel,
		Priority:      models.FloorPriority,
		Location:      location,
		Message:       message,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i, c := range contacts {
		a.NotifiedContacts = append(a.NotifiedContacts, models.NotifiedContact{
			AlertID:        a.ID,
			ContactID:      c.ID,
			ContactName:    c.Name,
			Relationship:   c.Relationship,
			Position:       i,
			NotifiedAt:     now,
			DeliveryStatus: models.DeliveryPending,
		})
	}

	if err := e.store.Create(ctx, a); err != nil {
		return nil, err
	}
	e.metrics.AlertCreated()
	logger.Info("alert created",
		zap.String("alert_id", a.ID),
		zap.String("reporter_id", reporterID),
		zap.Int("contacts", len(contacts)))

	if len(contacts) == 0 {
		return a, errors.Validation("reporter %s has no active trusted contacts", reporterID)
	}

	outcome := e.fanout.NewAlert(a)
	for i := range a.NotifiedContacts {
		a.NotifiedContacts[i].DeliveryStatus = outcome[a.NotifiedContacts[i].ContactID]
	}
	if err := e.store.UpdateDelivery(ctx, a.ID, outcome); err != nil {
		logger.Warn("record delivery status", zap.String("alert_id", a.ID), zap.Error(err))
	}
	return a, nil
}

// Reinforce registers another press against an open alert. A press more than
// the reinforce window after the previous one starts a new escalation cycle.
func (e *Engine) Reinforce(ctx context.Context, alertID, location string) (*models.Alert, error) {
	if strings.TrimSpace(alertID) == "" {
		return nil, errors.Validation("alert id is required")
	}

	a, err := e.store.UpdateAtomic(ctx, alertID, func(a *models.Alert) error {
		if a.Status.Terminal() {
			return errors.NotFound("alert %s is %s", a.ID, a.Status)
		}
		now := e.now()
		a.PressCount = models.NextPressCount(a.PressCount, a.LastPressTime, now, e.window)
		a.LastPressTime = now
		a.AlertLevel, a.Priority = models.DeriveLevel(a.PressCount)
		if location != "" {
			a.LastKnownLocation = location
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.AlertReinforced(string(a.AlertLevel))
	logger.Info("alert reinforced",
		zap.String("alert_id", a.ID),
		zap.Int("press_count", a.PressCount),
		zap.String("level", string(a.AlertLevel)))
	return a, nil
}

// Get returns an alert visible to actor: its reporter or one of its notified contacts.
func (e *Engine) Get(ctx context.Context, alertID string, actor models.Actor) (*models.Alert, error) {
	a, err := e.store.FindByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if err := authorize(a, actor); err != nil {
		return nil, err
	}
	return a, nil
}

// ListForUser returns the reporter's alerts, newest first.
func (e *Engine) ListForUser(ctx context.Context, reporterID string, limit, offset int) ([]models.Alert, error) {
	return e.store.Find(ctx, store.Filter{ReporterID: reporterID, Limit: limit, Offset: offset})
}

// ListForContact returns open alerts the contact was notified of.
func (e *Engine) ListForContact(ctx context.Context, contactID string, limit, offset int) ([]models.Alert, error) {
	return e.store.Find(ctx, store.Filter{
		ContactID: contactID,
		Statuses:  models.OpenForContacts,
		Limit:     limit,
		Offset:    offset,
	})
}

// RefreshOpenGauge publishes the number of open alerts.
func (e *Engine) RefreshOpenGauge(ctx context.Context) {
	n, err := e.store.CountOpen(ctx)
	if err != nil {
		logger.Warn("count open alerts", zap.Error(err))
		return
	}
	e.metrics.SetOpenAlerts(n)
}

func authorize(a *models.Alert, actor models.Actor) error {
	switch actor.Role {
	case models.RoleUser:
		if a.Reporter.ID == actor.ID {
			return nil
		}
	case models.RoleContact:
		if a.HasNotified(actor.ID) {
			return nil
		}
	}
	return errors.Forbidden("alert %s is not visible to %s", a.ID, actor.Channel())
}
