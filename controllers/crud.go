package controllers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/princinho/postboard/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// GetAll lists the documents matching the filter built from the query string.
func GetAll[T any](repo repository.Repository[T], filter func(url.Values) (bson.M, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := filter(c.Request.URL.Query())
		if err != nil {
			respondError(c, err)
			return
		}
		items, err := repo.Find(c.Request.Context(), f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func GetByID[T any](repo repository.Repository[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := repo.FindByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// Create persists the document produced by build and answers 201.
func Create[T any](repo repository.Repository[T], build func(c *gin.Context) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := build(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := repo.Create(c.Request.Context(), item); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// Update applies the $set patch produced by build and answers with the
// updated document.
func Update[T any](repo repository.Repository[T], build func(c *gin.Context) (bson.M, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		patch, err := build(c)
		if err != nil {
			respondError(c, err)
			return
		}
		item, err := repo.FindByIDAndUpdate(c.Request.Context(), c.Param("id"), patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// Delete removes the document. after, when set, runs on the removed document
// before the response is written.
func Delete[T any](repo repository.Repository[T], after func(c *gin.Context, deleted *T)) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := repo.FindByIDAndDelete(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if after != nil {
			after(c, item)
		}
		c.JSON(http.StatusOK, gin.H{"message": "Deleted successfully"})
	}
}
