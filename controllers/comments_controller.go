package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/princinho/postboard/apperror"
	"github.com/princinho/postboard/dto"
	"github.com/princinho/postboard/models"
	"github.com/princinho/postboard/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	errCommentRequired = apperror.Validation("Message and post_id are required")
	errInvalidPostID   = apperror.Validation("Invalid postId")
)

// GET /comments
func GetComments(comments repository.Repository[models.Comment]) gin.HandlerFunc {
	return GetAll(comments, func(q url.Values) (bson.M, error) {
		return queryFilter(q, []string{"_id", "sender_id", "post_id"}, nil)
	})
}

// GET /comments/:id
func GetComment(comments repository.Repository[models.Comment]) gin.HandlerFunc {
	return GetByID(comments)
}

// GET /comments/posts/:postId
func GetCommentsByPost(comments repository.Repository[models.Comment]) gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, err := bson.ObjectIDFromHex(c.Param("postId"))
		if err != nil {
			respondError(c, errInvalidPostID)
			return
		}
		items, err := comments.Find(c.Request.Context(), bson.M{"post_id": postID})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// POST /comments. sender_id is always the caller.
func CreateComment(comments repository.Repository[models.Comment]) gin.HandlerFunc {
	return Create(comments, func(c *gin.Context) (*models.Comment, error) {
		sender, err := callerObjectID(c)
		if err != nil {
			return nil, err
		}
		var body dto.CreateCommentDTO
		if err := bindRejecting(c, &body, errCommentRequired, "sender_id", "_id"); err != nil {
			return nil, err
		}
		message := strings.TrimSpace(body.Message)
		if message == "" {
			return nil, errCommentRequired
		}
		postID, err := repository.ParseID(body.PostID)
		if err != nil {
			return nil, fmt.Errorf("post_id: %w", err)
		}
		return &models.Comment{Message: message, PostID: postID, SenderID: sender}, nil
	})
}

// PUT /comments/:id, owner only
func UpdateComment(comments repository.Repository[models.Comment]) gin.HandlerFunc {
	return Update(comments, func(c *gin.Context) (bson.M, error) {
		var body dto.UpdateCommentDTO
		if err := bindRejecting(c, &body, errInvalidBody, "sender_id", "_id"); err != nil {
			return nil, err
		}

		set := bson.M{}
		if body.Message != nil {
			v := strings.TrimSpace(*body.Message)
			if v == "" {
				return nil, apperror.Validation("message cannot be empty")
			}
			set["message"] = v
		}
		if body.PostID != nil {
			postID, err := repository.ParseID(*body.PostID)
			if err != nil {
				return nil, fmt.Errorf("post_id: %w", err)
			}
			set["post_id"] = postID
		}
		return set, nil
	})
}

// DELETE /comments/:id, owner only
func DeleteComment(comments repository.Repository[models.Comment]) gin.HandlerFunc {
	return Delete(comments, nil)
}
