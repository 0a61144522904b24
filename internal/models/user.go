// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Record carries the identifier and timestamps shared by every backend row.
type Record struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (r *Record) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// SessionUser is the authenticated identity cached for a device after login
// or session restore.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DisplayNameFor picks the name shown for a user: explicit name first, then
// the local part of the email address.
func DisplayNameFor(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// CampusSelection is the institution a user picked; it gates campus-scoped content.
type CampusSelection struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// Campus is a row in the campuses collection.
type Campus struct {
	Record
	Name      string `gorm:"not null;uniqueIndex" json:"name"`
	ShortName string `gorm:"not null" json:"short_name"`
	Location  string `json:"location"`
}

func (Campus) TableName() string { return "campuses" }

// Selection projects a campus row into the client-side selection.
func (c Campus) Selection() CampusSelection {
	return CampusSelection{ID: c.ID, Name: c.Name, ShortName: c.ShortName}
}

// Profile is the per-user row holding the campus reference and profile fields.
type Profile struct {
	Record
	Email     string `gorm:"index" json:"email"`
	FullName  string `json:"full_name"`
	CampusID  string `gorm:"size:36;index" json:"campus_id"`
	Year      string `json:"year"`
	Bio       string `gorm:"type:text" json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

func (Profile) TableName() string { return "profiles" }

// Notification is an alert addressed to one user.
type Notification struct {
	Record
	UserID string `gorm:"size:36;not null;index" json:"user_id"`
	Type   string `gorm:"not null" json:"type"`
	Title  string `gorm:"not null" json:"title"`
	Body   string `gorm:"type:text" json:"body"`
	Link   string `json:"link"`
	Read   bool   `gorm:"not null;default:false" json:"read"`
}

func (Notification) TableName() string { return "notifications" }
