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
	DefaultPressWindow = 2 * time.Second
	DefaultCountdown   = 5 * time.Second
)

// Escalator is the server surface the reporter side drives.
type Escalator interface {
	CreateAlert(ctx context.Context, location, message string) (*models.Alert, error)
	Reinforce(ctx context.Context, alertID, location string) (*models.Alert, error)
	UpdateStatus(ctx context.Context, alertID string, status models.AlertStatus, note string) (*models.Alert, error)
}

// Hooks UI 回调，均可为空
type Hooks struct {
	CountdownStarted func(alertID string, d time.Duration)
	Confirmed        func(alertID string)
	Urgency          func(pressCount int, level models.AlertLevel)
	Cancelled        func(alertID string)
}

// PressState is a snapshot of the controller.
type PressState struct {
	PressCount   int
	AlertID      string
	Urgency      int
	CountingDown bool
}

// PressController turns taps of the emergency button into server calls for
// one reporter session. Presses further apart than the press window start
// over; the first press creates an alert, later ones reinforce it.
type PressController struct {
	mu        sync.Mutex
	api       Escalator
	now       func() time.Time
	window    time.Duration
	countdown time.Duration
	message   string
	hooks     Hooks

	pressCount int
	lastPress  time.Time
	alertID    string
	urgency    int
	timer      *scheduler.Timer
}

type ControllerOption func(*PressController)

func WithPressWindow(d time.Duration) ControllerOption {
	return func(p *PressController) { p.window = d }
}

func WithCountdown(d time.Duration) ControllerOption {
	return func(p *PressController) { p.countdown = d }
}

func WithControllerClock(now func() time.Time) ControllerOption {
	return func(p *PressController) { p.now = now }
}

func WithHooks(h Hooks) ControllerOption {
	return func(p *PressController) { p.hooks = h }
}

// WithMessage sets the message sent with a new alert.
func WithMessage(msg string) ControllerOption {
	return func(p *PressController) { p.message = msg }
}

func NewPressController(api Escalator, opts ...ControllerOption) *PressController {
	p := &PressController{
		api:       api,
		now:       time.Now,
		window:    DefaultPressWindow,
		countdown: DefaultCountdown,
		message:   "Emergency! I need help.",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Press handles one tap. The alert is returned even when creation reports a
// validation warning.
func (p *PressController) Press(ctx context.Context, location string) (*models.Alert, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.lastPress.IsZero() && now.Sub(p.lastPress) > p.window {
		p.pressCount = 0
	}
	p.pressCount++
	p.lastPress = now

	if p.pressCount == 1 || p.alertID == "" {
		return p.create(ctx, location)
	}
	return p.reinforce(ctx, location)
}

func (p *PressController) create(ctx context.Context, location string) (*models.Alert, error) {
	a, err := p.api.CreateAlert(ctx, location, p.message)
	if a == nil {
		// nothing was created, the next tap tries again
		p.pressCount = 0
		return nil, err
	}
	if err != nil {
		logger.Warn("alert created with warning", zap.String("alert_id", a.ID), zap.Error(err))
	}

	p.pressCount = 1
	p.alertID = a.ID
	p.urgency = 1
	p.startCountdown(a.ID)
	if p.hooks.Urgency != nil {
		p.hooks.Urgency(1, a.AlertLevel)
	}
	return a, err
}

func (p *PressController) reinforce(ctx context.Context, location string) (*models.Alert, error) {
	a, err := p.api.Reinforce(ctx, p.alertID, location)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			// closed elsewhere; the next tap raises a new alert
			p.reset()
		}
		return nil, err
	}
	if p.pressCount > p.urgency {
		p.urgency = p.pressCount
		if p.hooks.Urgency != nil {
			p.hooks.Urgency(p.urgency, a.AlertLevel)
		}
	}
	return a, nil
}

func (p *PressController) startCountdown(alertID string) {
	if p.timer != nil {
		p.timer.Cancel()
	}
	if p.hooks.CountdownStarted != nil {
		p.hooks.CountdownStarted(alertID, p.countdown)
	}
	p.timer = scheduler.AfterFunc(p.countdown, func() {
		logger.Info("alert confirmed", zap.String("alert_id", alertID))
		if p.hooks.Confirmed != nil {
			p.hooks.Confirmed(alertID)
		}
	})
}

// Cancel stops the countdown and withdraws the created alert. Creation has
// already happened, so the alert is moved to cancelled on the server even if
// the countdown has elapsed.
func (p *PressController) Cancel(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	alertID := p.alertID
	if alertID == "" {
		return nil
	}
	stopped := false
	if p.timer != nil {
		stopped = p.timer.Cancel()
		p.timer = nil
	}

	// the alert is kept until the server accepts the cancel so a retry can resend it
	_, err := p.api.UpdateStatus(ctx, alertID, models.StatusCancelled, "cancelled by reporter")
	if err != nil {
		logger.Warn("withdraw alert", zap.String("alert_id", alertID), zap.Bool("countdown_stopped", stopped), zap.Error(err))
		return err
	}
	p.reset()
	if p.hooks.Cancelled != nil {
		p.hooks.Cancelled(alertID)
	}
	return nil
}

func (p *PressController) reset() {
	p.pressCount = 0
	p.alertID = ""
	p.urgency = 0
	p.lastPress = time.Time{}
	if p.timer != nil {
		p.timer.Cancel()
		p.timer = nil
	}
}

func (p *PressController) State() PressState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PressState{
		PressCount:   p.pressCount,
		AlertID:      p.alertID,
		Urgency:      p.urgency,
		CountingDown: p.timer != nil && !p.timer.Fired(),
	}
}
