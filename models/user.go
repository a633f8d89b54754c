package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type User struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name          string        `bson:"name" json:"name"`
	Email         string        `bson:"email,omitempty" json:"email,omitempty"`
	Password      string        `bson:"password" json:"-"`      // bcrypt hash, never exposed
	RefreshTokens []string      `bson:"refreshTokens" json:"-"` // allow-list of redeemable refresh tokens
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// HasRefreshToken reports whether token is currently on the allow-list.
func (u *User) HasRefreshToken(token string) bool {
	for _, t := range u.RefreshTokens {
		if t == token {
			return true
		}
	}
	return false
}

// OwnerID is the identity a user record is owned by: the user itself.
func (u *User) OwnerID() string {
	return u.ID.Hex()
}
