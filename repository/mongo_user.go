package repository

import (
	"context"
	"errors"
	"fmt"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoUserRegistry struct {
	users *mongo.Collection
}

func NewMongoUserRegistry(db *mongo.Database) *MongoUserRegistry {
	return &MongoUserRegistry{users: db.Collection("users")}
}

func (r *MongoUserRegistry) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var user models.User
	err := r.users.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (r *MongoUserRegistry) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, bson.M{"email": emailKey(email)})
}

func (r *MongoUserRegistry) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRegistry) Insert(ctx context.Context, user models.User) error {
	user.Email = emailKey(user.Email)
	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
