package db

import (
	"fmt"
	"strings"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Preference is which genders a user wants to be shown.
type Preference string

const (
	PreferenceMale   Preference = "Male"
	PreferenceFemale Preference = "Female"
	PreferenceBoth   Preference = "Both"
)

// ParsePreference accepts Male/Female/Both case-insensitively.
func ParsePreference(s string) (Preference, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return PreferenceMale, true
	case "female":
		return PreferenceFemale, true
	case "both":
		return PreferenceBoth, true
	}
	return "", false
}

// Genders expands the preference into the candidate genders it admits.
// An unset preference behaves like Both.
func (p Preference) Genders() []Gender {
	switch p {
	case PreferenceMale:
		return []Gender{GenderMale}
	case PreferenceFemale:
		return []Gender{GenderFemale}
	default:
		return []Gender{GenderMale, GenderFemale}
	}
}

// User is the profile row. ID is the chat platform's user id, never generated here.
type User struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement:false"`
	Username   string     `gorm:"size:64"`
	Name       string     `gorm:"size:64;not null"`
	Gender     Gender     `gorm:"size:16;not null;index:idx_users_gender_banned,priority:1"`
	Campus     string     `gorm:"size:64"`
	Bio        string     `gorm:"size:500"`
	Hobbies    string     `gorm:"size:255"`
	PhotoRef   string     `gorm:"size:255"`
	Preference Preference `gorm:"size:16;not null;default:'Both'"`
	IsBanned   bool       `gorm:"not null;default:false;index:idx_users_gender_banned,priority:2"`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime"`
}

// Swipe is one directional like. Append-only.
//
// Composite PK: (LikerID, LikedID)
//   - A like is recorded at most once per pair.
//
// Indexes:
//   - idx_swipes_liked_created(liked_id, created_at DESC, liker_id)
//     Serves "who liked me" listings and the reverse-direction mutual check.
type Swipe struct {
	LikerID   uint64    `gorm:"primaryKey;autoIncrement:false;index:idx_swipes_liked_created,priority:3"`
	LikedID   uint64    `gorm:"primaryKey;autoIncrement:false;index:idx_swipes_liked_created,priority:1"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_swipes_liked_created,priority:2,sort:desc"`
}

// ActiveChat is one half of a live pairing. Rows always come in mirrored
// pairs (A→B, B→A); the primary key on UserID caps everyone at one partner.
type ActiveChat struct {
	UserID    uint64    `gorm:"primaryKey;autoIncrement:false"`
	PartnerID uint64    `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type ChatRequestStatus string

const (
	ChatRequestPending  ChatRequestStatus = "pending"
	ChatRequestAccepted ChatRequestStatus = "accepted"
	ChatRequestDeclined ChatRequestStatus = "declined"
)

// ChatRequest is a consent ask from RequesterID to RequestedID.
//
// PendingKey is "<requester>:<requested>" while pending and NULL afterwards.
// Its unique index allows one pending request per ordered pair while keeping
// any number of resolved ones, on every supported dialect.
type ChatRequest struct {
	ID          uint64            `gorm:"primaryKey;autoIncrement"`
	RequesterID uint64            `gorm:"not null;index"`
	RequestedID uint64            `gorm:"not null;index:idx_chat_requests_requested_status,priority:1"`
	Status      ChatRequestStatus `gorm:"size:16;not null;default:'pending';index:idx_chat_requests_requested_status,priority:2"`
	PendingKey  *string           `gorm:"size:64;uniqueIndex"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime"`
}

// PendingKey builds the uniqueness key for a pending request.
func PendingKey(requesterID, requestedID uint64) *string {
	k := fmt.Sprintf("%d:%d", requesterID, requestedID)
	return &k
}

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportApproved ReportStatus = "approved"
	ReportRejected ReportStatus = "rejected"
)

// Report is a user complaint queued for moderation.
type Report struct {
	ID         uint64       `gorm:"primaryKey;autoIncrement"`
	ReporterID uint64       `gorm:"not null;index"`
	ReportedID uint64       `gorm:"not null;index"`
	Reason     string       `gorm:"size:500;not null"`
	Status     ReportStatus `gorm:"size:16;not null;default:'pending';index"`
	CreatedAt  time.Time    `gorm:"autoCreateTime"`
}

// Models lists every table AutoMigrate manages.
func Models() []any {
	return []any{&User{}, &Swipe{}, &ActiveChat{}, &ChatRequest{}, &Report{}}
}
