package models

import "time"

type AlertStatus string

const (
	StatusActive    AlertStatus = "active"
	StatusContacted AlertStatus = "contacted"
	StatusResolved  AlertStatus = "resolved"
	StatusCancelled AlertStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s AlertStatus) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

func (s AlertStatus) Valid() bool {
	switch s {
	case StatusActive, StatusContacted, StatusResolved, StatusCancelled:
		return true
	}
	return false
}

type AlertLevel string

const (
	LevelLow      AlertLevel = "low"
	LevelMedium   AlertLevel = "medium"
	LevelHigh     AlertLevel = "high"
	LevelCritical AlertLevel = "critical"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRelayed   DeliveryStatus = "relayed"
	DeliveryOffline   DeliveryStatus = "offline"
)

// ReporterSnapshot is copied from the user profile when the alert is created,
// later profile edits do not reach it.
type ReporterSnapshot struct {
	ID    string `json:"id" gorm:"size:64;index"`
	Name  string `json:"name" gorm:"size:128"`
	Phone string `json:"phone" gorm:"size:32"`
	Email string `json:"email" gorm:"size:128"`
}

// Alert SOS alert raised by a user
type Alert struct {
	ID                string            `json:"id" gorm:"primaryKey;size:64"`
	Reporter          ReporterSnapshot  `json:"reporter" gorm:"embedded;embeddedPrefix:reporter_"`
	Status            AlertStatus       `json:"status" gorm:"size:16;index"`
	PressCount        int               `json:"pressCount"`
	LastPressTime     time.Time         `json:"lastPressTime"`
	AlertLevel        AlertLevel        `json:"alertLevel" gorm:"size:16"`
	Priority          Priority          `json:"priority" gorm:"size:16"`
	Location          string            `json:"location" gorm:"size:512"`
	LastKnownLocation string            `json:"lastKnownLocation,omitempty" gorm:"size:512"`
	Message           string            `json:"message" gorm:"type:text"`
	NotifiedContacts  []NotifiedContact `json:"notifiedContacts" gorm:"foreignKey:AlertID"`
	ResponseLog       []AlertResponse   `json:"responseLog" gorm:"foreignKey:AlertID"`
	ResolvedAt        *time.Time        `json:"resolvedAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// NotifiedContact one entry of the recipient snapshot taken at creation
type NotifiedContact struct {
	ID             uint           `json:"-" gorm:"primaryKey"`
	AlertID        string         `json:"-" gorm:"size:64;index;uniqueIndex:idx_alert_contact"`
	ContactID      string         `json:"contactId" gorm:"size:64;index;uniqueIndex:idx_alert_contact"`
	ContactName    string         `json:"contactName" gorm:"size:128"`
	Relationship   string         `json:"relationship,omitempty" gorm:"size:64"`
	Position       int            `json:"-"`
	NotifiedAt     time.Time      `json:"notifiedAt"`
	DeliveryStatus DeliveryStatus `json:"-" gorm:"size:16"`
}

// AlertResponse one audit entry; rows are only ever inserted
type AlertResponse struct {
	ID             string      `json:"id" gorm:"primaryKey;size:64"`
	AlertID        string      `json:"-" gorm:"size:64;index"`
	Seq            int         `json:"seq"`
	ContactID      string      `json:"contactId" gorm:"size:64"`
	ContactName    string      `json:"contactName" gorm:"size:128"`
	ActorRole      Role        `json:"actorRole" gorm:"size:16"`
	PreviousStatus AlertStatus `json:"previousStatus" gorm:"size:16"`
	NewStatus      AlertStatus `json:"newStatus" gorm:"size:16"`
	Note           string      `json:"note,omitempty" gorm:"type:text"`
	Timestamp      time.Time   `json:"timestamp"`
}

// HasNotified reports whether contactID belongs to the alert's recipient snapshot.
func (a *Alert) HasNotified(contactID string) bool {
	for _, nc := range a.NotifiedContacts {
		if nc.ContactID == contactID {
			return true
		}
	}
	return false
}

// OpenForContacts is the set of statuses contacts are shown.
var OpenForContacts = []AlertStatus{StatusActive, StatusContacted}
