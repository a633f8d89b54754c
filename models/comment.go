package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Comment struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Message   string        `bson:"message" json:"message"`
	SenderID  bson.ObjectID `bson:"sender_id" json:"sender_id"`
	PostID    bson.ObjectID `bson:"post_id" json:"post_id"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt" json:"updatedAt"`
}

func (c *Comment) OwnerID() string {
	return c.SenderID.Hex()
}
