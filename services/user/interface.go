package user

import "convene/models"

// UserService handles account registration and authentication.
type UserService interface {
	Register(req models.UserRegistration) (*models.AuthResponse, error)
	Authenticate(creds models.UserCredentials) (*models.AuthResponse, error)
	GetByID(id string) (*models.User, error)
}
