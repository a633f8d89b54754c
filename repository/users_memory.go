package repository

import (
	"context"

	"github.com/princinho/postboard/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type MemoryUserRepository struct {
	*MemoryRepository[models.User]
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{MemoryRepository: NewMemoryRepository[models.User]("email")}
}

func (r *MemoryUserRepository) FindByLogin(_ context.Context, name, email string) (*models.User, error) {
	filter := bson.M{"name": name}
	if email != "" {
		filter = bson.M{"email": email}
	}
	return r.findOne(filter)
}

func (r *MemoryUserRepository) PushRefreshToken(_ context.Context, userID, token string) error {
	_, err := r.mutate(userID, func(u *models.User) bool {
		u.RefreshTokens = append(u.RefreshTokens, token)
		return true
	})
	return err
}

func (r *MemoryUserRepository) RotateRefreshToken(_ context.Context, userID, old, next string) (bool, error) {
	return r.mutate(userID, func(u *models.User) bool {
		if !u.HasRefreshToken(old) {
			return false
		}
		u.RefreshTokens = append(without(u.RefreshTokens, old), next)
		return true
	})
}

func (r *MemoryUserRepository) PullRefreshToken(_ context.Context, userID, token string) (bool, error) {
	return r.mutate(userID, func(u *models.User) bool {
		if !u.HasRefreshToken(token) {
			return false
		}
		u.RefreshTokens = without(u.RefreshTokens, token)
		return true
	})
}

func (r *MemoryUserRepository) ClearRefreshTokens(_ context.Context, userID string) error {
	_, err := r.mutate(userID, func(u *models.User) bool {
		u.RefreshTokens = []string{}
		return true
	})
	return err
}

func without(tokens []string, token string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != token {
			out = append(out, t)
		}
	}
	return out
}

var _ UserRepository = (*MemoryUserRepository)(nil)
