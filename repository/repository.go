// Package repository is the persistence layer: a generic per-collection
// repository and the user store with its refresh-token allow-list.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/princinho/postboard/apperror"
	"github.com/princinho/postboard/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	ErrNotFound  = apperror.ErrNotFound
	// ErrInvalidID carries no apperror kind, so it answers 500 like any
	// other store failure.
	ErrInvalidID = errors.New("repository: malformed id")
)

// Repository is the capability the generic controllers work against.
type Repository[T any] interface {
	Find(ctx context.Context, filter bson.M) ([]T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, doc *T) error
	FindByIDAndUpdate(ctx context.Context, id string, patch bson.M) (*T, error)
	FindByIDAndDelete(ctx context.Context, id string) (*T, error)
}

// UserRepository adds login lookup and the allow-list operations. Every
// allow-list mutation is atomic per user.
type UserRepository interface {
	Repository[models.User]

	// FindByLogin looks a user up by email when email is set, by name otherwise.
	FindByLogin(ctx context.Context, name, email string) (*models.User, error)

	PushRefreshToken(ctx context.Context, userID, token string) error

	// RotateRefreshToken removes old and appends next only when old is on the
	// allow-list. It reports false, without writing, when old was absent.
	RotateRefreshToken(ctx context.Context, userID, old, next string) (bool, error)

	// PullRefreshToken removes token and reports whether it was present.
	PullRefreshToken(ctx context.Context, userID, token string) (bool, error)

	ClearRefreshTokens(ctx context.Context, userID string) error
}

// ParseID converts a hex id, mapping malformed input to ErrInvalidID.
func ParseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// toDocument flattens doc into a bson.M ready for insertion, assigning an id
// when missing and stamping both timestamps.
func toDocument(doc any, now time.Time) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if id, ok := m["_id"].(bson.ObjectID); !ok || id.IsZero() {
		m["_id"] = bson.NewObjectID()
	}
	m["createdAt"] = now
	m["updatedAt"] = now
	return m, nil
}

func fromDocument(m bson.M, out any) error {
	raw, err := bson.Marshal(m)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

func withUpdatedAt(patch bson.M, now time.Time) bson.M {
	set := make(bson.M, len(patch)+1)
	for k, v := range patch {
		set[k] = v
	}
	set["updatedAt"] = now
	return set
}

// IsDuplicateKey reports a unique index violation.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperror.ErrConflict) {
		return true
	}

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}

	return strings.Contains(err.Error(), "E11000 duplicate key error")
}
