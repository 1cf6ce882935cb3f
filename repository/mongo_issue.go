package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicsync/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const maxUpdateAttempts = 3

// MongoIssueRepository persists issues in a MongoDB collection. Updates use
// optimistic concurrency on the version field so two writers racing on the
// same issue cannot silently overwrite each other.
type MongoIssueRepository struct {
	issues *mongo.Collection
}

func NewMongoIssueRepository(db *mongo.Database) *MongoIssueRepository {
	return &MongoIssueRepository{issues: db.Collection("issues")}
}

// insertion order: creation time, then id
var insertionOrder = options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

func (r *MongoIssueRepository) find(ctx context.Context, filter bson.M) ([]models.Issue, error) {
	cursor, err := r.issues.Find(ctx, filter, insertionOrder)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	for i := range issues {
		normalize(&issues[i])
	}
	return issues, nil
}

func (r *MongoIssueRepository) List(ctx context.Context) ([]models.Issue, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoIssueRepository) ListByCreator(ctx context.Context, userID string) ([]models.Issue, error) {
	return r.find(ctx, bson.M{"createdById": userID})
}

func (r *MongoIssueRepository) Get(ctx context.Context, id string) (models.Issue, error) {
	var issue models.Issue
	err := r.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Issue{}, ErrNotFound
		}
		return models.Issue{}, fmt.Errorf("find issue %s: %w", id, err)
	}
	normalize(&issue)
	return issue, nil
}

func (r *MongoIssueRepository) Insert(ctx context.Context, issue models.Issue) error {
	if _, err := r.issues.InsertOne(ctx, issue); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (r *MongoIssueRepository) Update(ctx context.Context, id string, mutate Mutator) (models.Issue, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		current, err := r.Get(ctx, id)
		if err != nil {
			return models.Issue{}, err
		}

		updated := current.Clone()
		if err := mutate(&updated); err != nil {
			return models.Issue{}, err
		}
		updated.ID = id
		updated.Version = current.Version + 1

		res, err := r.issues.ReplaceOne(ctx, bson.M{"_id": id, "version": current.Version}, updated)
		if err != nil {
			return models.Issue{}, fmt.Errorf("replace issue %s: %w", id, err)
		}
		if res.MatchedCount == 1 {
			return updated, nil
		}

		// lost the race; back off briefly and re-read
		select {
		case <-ctx.Done():
			return models.Issue{}, ctx.Err()
		case <-time.After(time.Duration(attempt*10) * time.Millisecond):
		}
	}
	return models.Issue{}, ErrConflict
}

// normalize replaces nil slices decoded from documents written without them.
func normalize(issue *models.Issue) {
	if issue.Upvotes == nil {
		issue.Upvotes = []string{}
	}
	if issue.Comments == nil {
		issue.Comments = []models.Comment{}
	}
}
