package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/princinho/postboard/apperror"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoRepository implements Repository over a single collection.
type MongoRepository[T any] struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoRepository[T any](col *mongo.Collection) *MongoRepository[T] {
	return &MongoRepository[T]{
		col: col,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *MongoRepository[T]) Find(ctx context.Context, filter bson.M) ([]T, error) {
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", r.col.Name(), err)
	}
	defer cursor.Close(ctx)

	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", r.col.Name(), err)
	}
	return items, nil
}

func (r *MongoRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepository[T]) findOne(ctx context.Context, filter bson.M) (*T, error) {
	var doc T
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: find one: %w", r.col.Name(), err)
	}
	return &doc, nil
}

func (r *MongoRepository[T]) Create(ctx context.Context, doc *T) error {
	m, err := toDocument(doc, r.now())
	if err != nil {
		return fmt.Errorf("%s: encode: %w", r.col.Name(), err)
	}
	if _, err := r.col.InsertOne(ctx, m); err != nil {
		if IsDuplicateKey(err) {
			return fmt.Errorf("%s: %w", r.col.Name(), apperror.ErrConflict)
		}
		return fmt.Errorf("%s: insert: %w", r.col.Name(), err)
	}
	return fromDocument(m, doc)
}

func (r *MongoRepository[T]) FindByIDAndUpdate(ctx context.Context, id string, patch bson.M) (*T, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc T
	err = r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": withUpdatedAt(patch, r.now())}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if IsDuplicateKey(err) {
			return nil, fmt.Errorf("%s: %w", r.col.Name(), apperror.ErrConflict)
		}
		return nil, fmt.Errorf("%s: update: %w", r.col.Name(), err)
	}
	return &doc, nil
}

func (r *MongoRepository[T]) FindByIDAndDelete(ctx context.Context, id string) (*T, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	var doc T
	if err := r.col.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: delete: %w", r.col.Name(), err)
	}
	return &doc, nil
}
