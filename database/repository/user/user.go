package userRepo

import (
	"context"
	"time"

	"convene/config"
	"convene/database"
	"convene/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// UserRepository defines persistence for users and their calendar credentials.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id string) error

	// Credential operations. SaveCredential is last-write-wins; a concurrent
	// refresh overwriting the same slot is acceptable.
	Credential(userID string, provider models.CalendarProvider) (*models.CalendarCredential, error)
	SaveCredential(userID string, cred models.CalendarCredential) error
	DeleteCredential(userID string, provider models.CalendarProvider) error
	ConnectedProviders(userID string) ([]models.CalendarProvider, error)
}

// MongoUserRepo is the MongoDB implementation of UserRepository.
type MongoUserRepo struct {
	coll *mongo.Collection
}

// NewMongoUserRepo returns a repo bound to the users collection.
func NewMongoUserRepo() *MongoUserRepo {
	coll := database.MongoClient.Database(config.AppConfig.DatabaseName).Collection("users")
	return &MongoUserRepo{coll: coll}
}

func newContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
