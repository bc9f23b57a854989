// Package models holds the profile domain types.
package models

import "time"

// Visibility controls who can see a profile.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPublic, VisibilityFriends, VisibilityPrivate:
		return true
	}
	return false
}

// PrivacySettings controls profile field exposure.
type PrivacySettings struct {
	Visibility Visibility `json:"visibility"`
	ShowEmail  bool       `json:"show_email"`
	ShowPhone  bool       `json:"show_phone"`
}

// Profile is one user's profile record. PasswordHash never leaves the
// store and service layers.
type Profile struct {
	UserID       string          `json:"user_id"`
	DisplayName  string          `json:"display_name"`
	Bio          string          `json:"bio,omitempty"`
	Email        string          `json:"email,omitempty"`
	Phone        string          `json:"phone,omitempty"`
	Website      string          `json:"website,omitempty"`
	AvatarURL    string          `json:"avatar_url,omitempty"`
	Privacy      PrivacySettings `json:"privacy"`
	PasswordHash string          `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Export is the full data export produced for a user on request.
type Export struct {
	Profile     *Profile  `json:"profile"`
	GeneratedAt time.Time `json:"generated_at"`
}
