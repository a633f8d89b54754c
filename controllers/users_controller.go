package controllers

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/princinho/postboard/apperror"
	"github.com/princinho/postboard/auth"
	"github.com/princinho/postboard/dto"
	"github.com/princinho/postboard/models"
	"github.com/princinho/postboard/repository"
	"github.com/princinho/postboard/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var errUserRequired = apperror.Validation("Name and password are required")

// GET /users
func GetUsers(users repository.Repository[models.User]) gin.HandlerFunc {
	return GetAll(users, func(q url.Values) (bson.M, error) {
		return queryFilter(q, []string{"_id"}, []string{"password", "refreshTokens"})
	})
}

// GET /users/:id
func GetUser(users repository.Repository[models.User]) gin.HandlerFunc {
	return GetByID(users)
}

// POST /users
func CreateUser(users repository.Repository[models.User], hasher auth.Hasher) gin.HandlerFunc {
	return Create(users, func(c *gin.Context) (*models.User, error) {
		var body dto.CreateUserDTO
		if err := bindRejecting(c, &body, errUserRequired, "_id", "refreshTokens"); err != nil {
			return nil, err
		}

		name := utils.NormalizeName(body.Name)
		if name == "" {
			return nil, apperror.Validation("name cannot be empty")
		}
		hash, err := hasher.Hash(body.Password)
		if err != nil {
			return nil, err
		}
		return &models.User{
			Name:          name,
			Email:         utils.NormalizeEmail(body.Email),
			Password:      hash,
			RefreshTokens: []string{},
		}, nil
	})
}

// PUT /users/:id, owner only
func UpdateUser(users repository.Repository[models.User], hasher auth.Hasher) gin.HandlerFunc {
	return Update(users, func(c *gin.Context) (bson.M, error) {
		var body dto.UpdateUserDTO
		if err := bindRejecting(c, &body, errInvalidBody, "_id", "refreshTokens"); err != nil {
			return nil, err
		}

		set := bson.M{}
		if body.Name != nil {
			v := utils.NormalizeName(*body.Name)
			if v == "" {
				return nil, apperror.Validation("name cannot be empty")
			}
			set["name"] = v
		}
		if body.Email != nil {
			v := utils.NormalizeEmail(*body.Email)
			if v == "" {
				return nil, apperror.Validation("email cannot be empty")
			}
			set["email"] = v
		}
		if body.Password != nil {
			if strings.TrimSpace(*body.Password) == "" {
				return nil, apperror.Validation("password cannot be empty")
			}
			hash, err := hasher.Hash(*body.Password)
			if err != nil {
				return nil, err
			}
			set["password"] = hash
		}
		return set, nil
	})
}

// DELETE /users/:id, owner only
func DeleteUser(users repository.Repository[models.User]) gin.HandlerFunc {
	return Delete(users, nil)
}
