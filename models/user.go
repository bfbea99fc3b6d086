package models

import "time"

// User represents a platform user and owns the per-provider credentials.
type User struct {
	ID           string                                  `bson:"id" json:"id"`
	Name         string                                  `bson:"name" json:"name"`
	Email        string                                  `bson:"email" json:"email"`
	PasswordHash string                                  `bson:"passwordHash" json:"-"`
	Timezone     string                                  `bson:"timezone,omitempty" json:"timezone,omitempty"`
	Credentials  map[CalendarProvider]CalendarCredential `bson:"credentials,omitempty" json:"-"`
	CreatedAt    time.Time                               `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time                               `bson:"updatedAt" json:"updatedAt"`
}

// ConnectedProviders lists the user's connected backends in the fixed
// google-before-outlook order, so callers see a deterministic sequence.
func (u *User) ConnectedProviders() []CalendarProvider {
	var out []CalendarProvider
	for _, p := range KnownProviders {
		if _, ok := u.Credentials[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// UserRegistration is the signup payload.
type UserRegistration struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Timezone string `json:"timezone,omitempty"`
}

// UserCredentials is the signin payload.
type UserCredentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned on successful signup or signin.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
