package models

import "time"

// Real-time event names.
const (
	EventNewAlert     = "new-alert"
	EventStatusUpdate = "status-update"
)

// NewAlertEvent is pushed to every notified contact when an alert is created.
type NewAlertEvent struct {
	AlertID       string     `json:"alertId"`
	ReporterID    string     `json:"reporterId"`
	ReporterName  string     `json:"reporterName"`
	ReporterPhone string     `json:"reporterPhone"`
	Location      string     `json:"location"`
	Message       string     `json:"message"`
	PressCount    int        `json:"pressCount"`
	AlertLevel    AlertLevel `json:"alertLevel"`
	Priority      Priority   `json:"priority"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func NewAlertEventFor(a *Alert) NewAlertEvent {
	return NewAlertEvent{
		AlertID:       a.ID,
		ReporterID:    a.Reporter.ID,
		ReporterName:  a.Reporter.Name,
		ReporterPhone: a.Reporter.Phone,
		Location:      a.Location,
		Message:       a.Message,
		PressCount:    a.PressCount,
		AlertLevel:    a.AlertLevel,
		Priority:      a.Priority,
		CreatedAt:     a.CreatedAt,
	}
}

// StatusUpdateEvent is pushed to the reporter and every notified contact
// after an accepted status update.
type StatusUpdateEvent struct {
	AlertID        string      `json:"alertId"`
	Status         AlertStatus `json:"status"`
	PreviousStatus AlertStatus `json:"previousStatus"`
	ActorID        string      `json:"actorId"`
	ActorName      string      `json:"actorName"`
	ActorRole      Role        `json:"actorRole"`
	Note           string      `json:"note,omitempty"`
	Seq            int         `json:"seq"`
	Timestamp      time.Time   `json:"timestamp"`
	ResolvedAt     *time.Time  `json:"resolvedAt,omitempty"`
}

func StatusUpdateEventFor(a *Alert, entry AlertResponse) StatusUpdateEvent {
	return StatusUpdateEvent{
		AlertID:        a.ID,
		Status:         a.Status,
		PreviousStatus: entry.PreviousStatus,
		ActorID:        entry.ContactID,
		ActorName:      entry.ContactName,
		ActorRole:      entry.ActorRole,
		Note:           entry.Note,
		Seq:            entry.Seq,
		Timestamp:      entry.Timestamp,
		ResolvedAt:     a.ResolvedAt,
	}
}
