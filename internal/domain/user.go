// Package domain contains core domain types for the coaching assistant.
package domain

import (
	"time"
)

// User represents an anonymous device-scoped user.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserProfile holds the questionnaire answers the assistant reasons about.
type UserProfile struct {
	UserID          string   `json:"user_id"`
	Name            string   `json:"name,omitempty"`
	Age             int      `json:"age,omitempty"`
	Sex             string   `json:"sex,omitempty"`
	HeightCM        float64  `json:"height_cm,omitempty"`
	WeightKG        float64  `json:"weight_kg,omitempty"`
	Goals           []string `json:"goals,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	Equipment       []string `json:"equipment,omitempty"`
}

// IsZero reports whether the profile carries no answers at all.
func (p UserProfile) IsZero() bool {
	return p.Name == "" && p.Age == 0 && p.Sex == "" && p.HeightCM == 0 &&
		p.WeightKG == 0 && len(p.Goals) == 0 && p.ExperienceLevel == "" && len(p.Equipment) == 0
}
