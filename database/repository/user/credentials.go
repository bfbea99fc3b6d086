package userRepo

import (
	"fmt"
	"time"

	"convene/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Credential fetches the stored OAuth credential for one provider. A missing
// user or credential slot yields (nil, nil); an error means the store itself
// failed.
func (r *MongoUserRepo) Credential(userID string, provider models.CalendarProvider) (*models.CalendarCredential, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"id": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credentials for user %s: %w", userID, err)
	}
	cred, ok := user.Credentials[provider]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

// SaveCredential upserts the credential slot for the credential's provider.
func (r *MongoUserRepo) SaveCredential(userID string, cred models.CalendarCredential) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	field := fmt.Sprintf("credentials.%s", cred.Provider)
	update := bson.M{
		"$set": bson.M{
			field:       cred,
			"updatedAt": time.Now(),
		},
	}
	result, err := r.coll.UpdateOne(ctx, bson.M{"id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to save %s credential for user %s: %w", cred.Provider, userID, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCredential removes the credential slot for one provider.
func (r *MongoUserRepo) DeleteCredential(userID string, provider models.CalendarProvider) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	field := fmt.Sprintf("credentials.%s", provider)
	update := bson.M{
		"$unset": bson.M{field: ""},
		"$set":   bson.M{"updatedAt": time.Now()},
	}
	result, err := r.coll.UpdateOne(ctx, bson.M{"id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to delete %s credential for user %s: %w", provider, userID, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ConnectedProviders returns the user's connected backends in fixed order.
func (r *MongoUserRepo) ConnectedProviders(userID string) ([]models.CalendarProvider, error) {
	user, err := r.GetByID(userID)
	if err != nil {
		return nil, err
	}
	return user.ConnectedProviders(), nil
}
