package repository

import (
	"context"
	"fmt"

	"github.com/princinho/postboard/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type MongoUserRepository struct {
	*MongoRepository[models.User]
}

func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{MongoRepository: NewMongoRepository[models.User](col)}
}

func (r *MongoUserRepository) FindByLogin(ctx context.Context, name, email string) (*models.User, error) {
	filter := bson.M{"name": name}
	if email != "" {
		filter = bson.M{"email": email}
	}
	return r.findOne(ctx, filter)
}

func (r *MongoUserRepository) PushRefreshToken(ctx context.Context, userID, token string) error {
	oid, err := ParseID(userID)
	if err != nil {
		return err
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"refreshTokens": token},
		"$set":  bson.M{"updatedAt": r.now()},
	})
	if err != nil {
		return fmt.Errorf("users: push refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateRefreshToken runs as one pipeline update filtered on membership of
// old, so two concurrent rotations of the same token cannot both match.
func (r *MongoUserRepository) RotateRefreshToken(ctx context.Context, userID, old, next string) (bool, error) {
	oid, err := ParseID(userID)
	if err != nil {
		return false, err
	}

	remaining := bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$refreshTokens", bson.A{}}}}},
		{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", bson.D{{Key: "$literal", Value: old}}}}}},
	}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "refreshTokens", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				remaining,
				bson.A{bson.D{{Key: "$literal", Value: next}}},
			}}}},
			{Key: "updatedAt", Value: r.now()},
		}}},
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid, "refreshTokens": old}, pipeline)
	if err != nil {
		return false, fmt.Errorf("users: rotate refresh token: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoUserRepository) PullRefreshToken(ctx context.Context, userID, token string) (bool, error) {
	oid, err := ParseID(userID)
	if err != nil {
		return false, err
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid, "refreshTokens": token}, bson.M{
		"$pull": bson.M{"refreshTokens": token},
		"$set":  bson.M{"updatedAt": r.now()},
	})
	if err != nil {
		return false, fmt.Errorf("users: pull refresh token: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoUserRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	oid, err := ParseID(userID)
	if err != nil {
		return err
	}
	_, err = r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"refreshTokens": bson.A{}, "updatedAt": r.now()},
	})
	if err != nil {
		return fmt.Errorf("users: clear refresh tokens: %w", err)
	}
	return nil
}

var _ UserRepository = (*MongoUserRepository)(nil)
