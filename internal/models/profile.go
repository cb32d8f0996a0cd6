package models

import "time"

// SubscriptionStatus is the billing state of a profile.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionInactive, SubscriptionCancelled:
		return true
	}
	return false
}

// Profile is the per-user account record.
type Profile struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	Username           string             `json:"username,omitempty"`
	Bio                string             `json:"bio,omitempty"`
	AvatarURL          string             `json:"avatar_url,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	SubscriptionID     string             `json:"subscription_id,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are
// left unchanged; an empty string clears the field.
type ProfileUpdate struct {
	Username  *string `json:"username"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.Bio == nil && u.AvatarURL == nil
}

// IsActive reports whether the profile has an active subscription.
func (p Profile) IsActive() bool {
	return p.SubscriptionStatus == SubscriptionActive
}

// Session is an issued bearer token, stored only by hash.
type Session struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
