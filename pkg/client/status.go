package client

import (
	"context"
	"sync"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/logger"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/scheduler"
	"go.uber.org/zap"
)

const (
	DefaultSettleDelay = time.Second
	DefaultMaxInFlight = 64
)

var (
	// ErrInFlight is returned while an earlier update for the same alert is outstanding.
	ErrInFlight = errors.Conflict("a status update for this alert is already in flight")
	// ErrTooManyInFlight is returned when the marker set is full.
	ErrTooManyInFlight = errors.Conflict("too many status updates in flight")
)

// StatusAPI is the server surface a responder drives.
type StatusAPI interface {
	UpdateStatus(ctx context.Context, alertID string, status models.AlertStatus, note string) (*models.Alert, error)
	Get(ctx context.Context, alertID string) (*models.Alert, error)
}

// StatusUpdater suppresses repeated status updates for one alert while a
// prior call is outstanding. The marker is set before the call and cleared a
// settle delay after the refreshed read, so the fanout echo of our own update
// does not trigger another refresh. Best effort only: two sessions of the same
// contact are not coordinated.
type StatusUpdater struct {
	api     StatusAPI
	settle  time.Duration
	max     int
	refresh func(*models.Alert)

	mu       sync.Mutex
	inflight map[string]*scheduler.Timer
}

type UpdaterOption func(*StatusUpdater)

func WithSettleDelay(d time.Duration) UpdaterOption {
	return func(u *StatusUpdater) { u.settle = d }
}

func WithMaxInFlight(n int) UpdaterOption {
	return func(u *StatusUpdater) {
		if n > 0 {
			u.max = n
		}
	}
}

// WithRefresh is called with the alert read back after a successful update.
func WithRefresh(fn func(*models.Alert)) UpdaterOption {
	return func(u *StatusUpdater) { u.refresh = fn }
}

func NewStatusUpdater(api StatusAPI, opts ...UpdaterOption) *StatusUpdater {
	u := &StatusUpdater{
		api:      api,
		settle:   DefaultSettleDelay,
		max:      DefaultMaxInFlight,
		inflight: make(map[string]*scheduler.Timer),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *StatusUpdater) Update(ctx context.Context, alertID string, status models.AlertStatus, note string) (*models.Alert, error) {
	if err := u.acquire(alertID); err != nil {
		return nil, err
	}

	updated, err := u.api.UpdateStatus(ctx, alertID, status, note)
	if err != nil {
		// nothing to echo, release right away
		u.release(alertID)
		return nil, err
	}

	fresh, err := u.api.Get(ctx, alertID)
	if err != nil {
		logger.Warn("refresh after status update", zap.String("alert_id", alertID), zap.Error(err))
		fresh = updated
	}
	if u.refresh != nil {
		u.refresh(fresh)
	}
	u.settleLater(alertID)
	return fresh, nil
}

// InFlight reports whether alertID is marked.
func (u *StatusUpdater) InFlight(alertID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.inflight[alertID]
	return ok
}

// ShouldRefresh reports whether a status-update event warrants a refresh;
// events for marked alerts are our own echo.
func (u *StatusUpdater) ShouldRefresh(ev models.StatusUpdateEvent) bool {
	return !u.InFlight(ev.AlertID)
}

func (u *StatusUpdater) acquire(alertID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.inflight[alertID]; ok {
		return ErrInFlight
	}
	if len(u.inflight) >= u.max {
		return ErrTooManyInFlight
	}
	u.inflight[alertID] = nil
	return nil
}

func (u *StatusUpdater) release(alertID string) {
	u.mu.Lock()
	delete(u.inflight, alertID)
	u.mu.Unlock()
}

func (u *StatusUpdater) settleLater(alertID string) {
	if u.settle <= 0 {
		u.release(alertID)
		return
	}
	// the callback blocks on mu until the marker is stored
	u.mu.Lock()
	u.inflight[alertID] = scheduler.AfterFunc(u.settle, func() { u.release(alertID) })
	u.mu.Unlock()
}
