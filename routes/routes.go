// Package routes wires the handlers onto a gin engine.
package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/postboard/auth"
	"github.com/princinho/postboard/controllers"
	"github.com/princinho/postboard/metrics"
	"github.com/princinho/postboard/middleware"
	"github.com/princinho/postboard/models"
	"github.com/princinho/postboard/repository"
	"github.com/princinho/postboard/storage"
	"github.com/princinho/postboard/utils"
)

type Deps struct {
	Sessions  *auth.SessionService
	Hasher    auth.Hasher
	Users     repository.UserRepository
	Posts     repository.Repository[models.Post]
	Comments  repository.Repository[models.Comment]
	Store     storage.ObjectStore
	Validator *utils.FileValidator

	// Ping reports whether the backing store is reachable. Nil means always healthy.
	Ping func(ctx context.Context) error
}

func Register(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/healthz", func(c *gin.Context) {
		if d.Ping != nil {
			if err := d.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Service unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", controllers.Register(d.Sessions))
		authGroup.POST("/login", controllers.Login(d.Sessions))
		authGroup.POST("/refresh-token", controllers.RefreshToken(d.Sessions))
		authGroup.POST("/logout", controllers.Logout(d.Sessions))
	}

	api := r.Group("/")
	api.Use(middleware.AuthMiddleware(d.Sessions))

	ownsUser := middleware.Authorize(d.Users.FindByID, (*models.User).OwnerID)
	users := api.Group("/users")
	{
		users.GET("", controllers.GetUsers(d.Users))
		users.POST("", controllers.CreateUser(d.Users, d.Hasher))
		users.GET("/:id", controllers.GetUser(d.Users))
		users.PUT("/:id", ownsUser, controllers.UpdateUser(d.Users, d.Hasher))
		users.DELETE("/:id", ownsUser, controllers.DeleteUser(d.Users))
	}

	ownsPost := middleware.Authorize(d.Posts.FindByID, (*models.Post).OwnerID)
	posts := api.Group("/posts")
	{
		posts.GET("", controllers.GetPosts(d.Posts))
		posts.POST("", controllers.CreatePost(d.Posts))
		posts.GET("/:id", controllers.GetPost(d.Posts))
		posts.PUT("/:id", ownsPost, controllers.UpdatePost(d.Posts))
		posts.DELETE("/:id", ownsPost, controllers.DeletePost(d.Posts, d.Store))
		posts.POST("/:id/image", ownsPost, controllers.UploadPostImage(d.Posts, d.Store, d.Validator))
	}

	ownsComment := middleware.Authorize(d.Comments.FindByID, (*models.Comment).OwnerID)
	comments := api.Group("/comments")
	{
		comments.GET("", controllers.GetComments(d.Comments))
		comments.POST("", controllers.CreateComment(d.Comments))
		comments.GET("/posts/:postId", controllers.GetCommentsByPost(d.Comments))
		comments.GET("/:id", controllers.GetComment(d.Comments))
		comments.PUT("/:id", ownsComment, controllers.UpdateComment(d.Comments))
		comments.DELETE("/:id", ownsComment, controllers.DeleteComment(d.Comments))
	}
}
