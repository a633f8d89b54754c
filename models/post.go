package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Post struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title       string        `bson:"title" json:"title"`
	Content     string        `bson:"content" json:"content"`
	SenderID    bson.ObjectID `bson:"sender_id" json:"sender_id"`
	ImageURL    string        `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	ImageObject string        `bson:"imageObject,omitempty" json:"-"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt" json:"updatedAt"`
}

func (p *Post) OwnerID() string {
	return p.SenderID.Hex()
}
