package models

import "time"

type Role string

const (
	RoleUser    Role = "user"
	RoleContact Role = "contact"
)

// User reporting user profile, owned by the account service
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"size:128"`
	Phone     string    `json:"phone" gorm:"size:32"`
	Email     string    `json:"email" gorm:"size:128"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TrustedContact a person designated by a user to receive alerts
type TrustedContact struct {
	ID           string    `json:"id" gorm:"primaryKey;size:64"`
	UserID       string    `json:"userId" gorm:"size:64;index"`
	Name         string    `json:"name" gorm:"size:128"`
	Relationship string    `json:"relationship" gorm:"size:64"`
	Phone        string    `json:"phone" gorm:"size:32"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID          string
	Role        Role
	Name        string
	OwnerUserID string // contacts only
}

// Channel is the real-time identity an actor listens on.
func (a Actor) Channel() string {
	if a.Role == RoleContact {
		return ContactChannel(a.ID)
	}
	return UserChannel(a.ID)
}

func UserChannel(id string) string    { return "user:" + id }
func ContactChannel(id string) string { return "contact:" + id }
