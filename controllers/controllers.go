// Package controllers holds the gin handlers: the session endpoints, a
// generic CRUD set and the per-resource wrappers around it.
package controllers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/princinho/postboard/apperror"
	"github.com/princinho/postboard/logging"
	"github.com/princinho/postboard/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

var errInvalidBody = apperror.Validation("Invalid request body")

// respondError writes {"message": ...} with the status matching err. Server
// errors are logged and never echoed to the client.
func respondError(c *gin.Context, err error) {
	status := apperror.Status(err)
	if status >= 500 {
		logging.From(c, nil).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"message": apperror.Message(err)})
}

// bindRejecting binds the JSON body into obj after checking that none of the
// forbidden top level keys is present. invalid is returned when the body
// does not satisfy obj's binding rules.
func bindRejecting(c *gin.Context, obj any, invalid error, forbidden ...string) error {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
		return errInvalidBody
	}
	for _, key := range forbidden {
		if _, ok := raw[key]; ok {
			return apperror.Validation(key + " cannot be set")
		}
	}
	if err := c.ShouldBindBodyWith(obj, binding.JSON); err != nil {
		return invalid
	}
	return nil
}

// queryFilter turns query parameters into an equality filter. Keys starting
// with "$" are dropped, as is any key whose first dotted segment is in
// hidden. Keys in objectIDFields must parse as ObjectIDs.
func queryFilter(q url.Values, objectIDFields []string, hidden []string) (bson.M, error) {
	filter := bson.M{}
	for key, values := range q {
		if len(values) == 0 || strings.HasPrefix(key, "$") {
			continue
		}
		if root, _, _ := strings.Cut(key, "."); contains(hidden, root) {
			continue
		}
		v := values[0]
		if contains(objectIDFields, key) {
			oid, err := repository.ParseID(v)
			if err != nil {
				return nil, fmt.Errorf("filter %s: %w", key, err)
			}
			filter[key] = oid
			continue
		}
		filter[key] = v
	}
	return filter, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
