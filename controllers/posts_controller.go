package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/princinho/postboard/apperror"
	"github.com/princinho/postboard/dto"
	"github.com/princinho/postboard/logging"
	"github.com/princinho/postboard/middleware"
	"github.com/princinho/postboard/models"
	"github.com/princinho/postboard/repository"
	"github.com/princinho/postboard/storage"
	"github.com/princinho/postboard/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

var (
	errPostRequired    = apperror.Validation("Title and content are required")
	errStorageDisabled = &apperror.Error{Kind: apperror.ErrUnavailable, Msg: "Image storage is not configured"}
	errImageRequired   = apperror.Validation("image file is required")
	errInvalidCaller   = &apperror.Error{Kind: apperror.ErrUnauthenticated, Msg: "Invalid token"}
)

// callerObjectID is the authenticated user as stored in sender_id.
func callerObjectID(c *gin.Context) (bson.ObjectID, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return bson.NilObjectID, apperror.ErrUnauthenticated
	}
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, errInvalidCaller
	}
	return oid, nil
}

// GET /posts
func GetPosts(posts repository.Repository[models.Post]) gin.HandlerFunc {
	return GetAll(posts, func(q url.Values) (bson.M, error) {
		return queryFilter(q, []string{"_id", "sender_id"}, []string{"imageObject"})
	})
}

// GET /posts/:id
func GetPost(posts repository.Repository[models.Post]) gin.HandlerFunc {
	return GetByID(posts)
}

// POST /posts. sender_id is always the caller.
func CreatePost(posts repository.Repository[models.Post]) gin.HandlerFunc {
	return Create(posts, func(c *gin.Context) (*models.Post, error) {
		sender, err := callerObjectID(c)
		if err != nil {
			return nil, err
		}
		var body dto.CreatePostDTO
		if err := bindRejecting(c, &body, errPostRequired, "sender_id", "_id", "imageUrl"); err != nil {
			return nil, err
		}
		title, content := strings.TrimSpace(body.Title), strings.TrimSpace(body.Content)
		if title == "" || content == "" {
			return nil, errPostRequired
		}
		return &models.Post{Title: title, Content: content, SenderID: sender}, nil
	})
}

// PUT /posts/:id, owner only
func UpdatePost(posts repository.Repository[models.Post]) gin.HandlerFunc {
	return Update(posts, func(c *gin.Context) (bson.M, error) {
		var body dto.UpdatePostDTO
		if err := bindRejecting(c, &body, errInvalidBody, "sender_id", "_id", "imageUrl"); err != nil {
			return nil, err
		}

		set := bson.M{}
		if body.Title != nil {
			v := strings.TrimSpace(*body.Title)
			if v == "" {
				return nil, apperror.Validation("title cannot be empty")
			}
			set["title"] = v
		}
		if body.Content != nil {
			v := strings.TrimSpace(*body.Content)
			if v == "" {
				return nil, apperror.Validation("content cannot be empty")
			}
			set["content"] = v
		}
		return set, nil
	})
}

// DELETE /posts/:id, owner only. The post's image goes with it.
func DeletePost(posts repository.Repository[models.Post], store storage.ObjectStore) gin.HandlerFunc {
	return Delete(posts, func(c *gin.Context, deleted *models.Post) {
		removeObject(c, store, deleted.ImageObject)
	})
}

// POST /posts/:id/image, owner only. Multipart field "image".
func UploadPostImage(posts repository.Repository[models.Post], store storage.ObjectStore, v *utils.FileValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			respondError(c, errStorageDisabled)
			return
		}
		post, ok := middleware.Resource[models.Post](c)
		if !ok {
			respondError(c, errors.New("upload image: resource missing from context"))
			return
		}

		fh, err := c.FormFile("image")
		if err != nil {
			respondError(c, errImageRequired)
			return
		}
		mimeType, err := v.ValidateFile(fh)
		if err != nil {
			if errors.Is(err, utils.ErrInvalidFile) {
				respondError(c, apperror.Validation(strings.TrimPrefix(err.Error(), utils.ErrInvalidFile.Error()+": ")))
				return
			}
			respondError(c, err)
			return
		}

		f, err := fh.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Close()

		key := storage.ObjectKey("posts", post.ID.Hex(), fh.Filename)
		publicURL, err := store.Put(c.Request.Context(), storage.Object{
			Key:         key,
			Body:        f,
			Size:        fh.Size,
			ContentType: mimeType,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		updated, err := posts.FindByIDAndUpdate(c.Request.Context(), post.ID.Hex(), bson.M{
			"imageUrl":    publicURL,
			"imageObject": key,
		})
		if err != nil {
			removeObject(c, store, key)
			respondError(c, err)
			return
		}
		removeObject(c, store, post.ImageObject)

		c.JSON(http.StatusOK, updated)
	}
}

// removeObject deletes key from the store, best effort.
func removeObject(c *gin.Context, store storage.ObjectStore, key string) {
	if store == nil || key == "" {
		return
	}
	if err := store.Delete(context.WithoutCancel(c.Request.Context()), key); err != nil {
		logging.From(c, nil).Warn("object cleanup failed", zap.String("key", key), zap.Error(err))
	}
}
