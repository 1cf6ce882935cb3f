// Package repository holds the persistence backends for issues and users.
// The memory backends publish copy-on-write snapshots; the mongo backends
// persist to MongoDB collections.
package repository

import (
	"context"
	"errors"

	"civicsync/models"
)

var (
	ErrNotFound  = errors.New("repository: record not found")
	ErrDuplicate = errors.New("repository: duplicate record")
	ErrConflict  = errors.New("repository: concurrent update conflict")
)

// Mutator edits a private copy of an issue. Returning an error aborts the
// update and leaves the stored record untouched.
type Mutator func(issue *models.Issue) error

// IssueRepository stores the issue collection.
type IssueRepository interface {
	// List returns every issue in insertion order.
	List(ctx context.Context) ([]models.Issue, error)
	ListByCreator(ctx context.Context, userID string) ([]models.Issue, error)
	Get(ctx context.Context, id string) (models.Issue, error)
	Insert(ctx context.Context, issue models.Issue) error
	// Update applies mutate atomically to the issue with the given id and
	// returns the stored result.
	Update(ctx context.Context, id string, mutate Mutator) (models.Issue, error)
}

// UserRegistry stores registered identities.
type UserRegistry interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Insert(ctx context.Context, user models.User) error
}
