// Package service holds the storefront business rules. Every error returned to callers is
// an *apperr.Error or wraps one.
package service

import (
	"errors"

	"github.com/example/foodhall/pkg/apperr"
	"github.com/example/foodhall/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// userIDFrom decodes the id carried by a verified token.
func userIDFrom(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.Unauthenticated("Not authorized")
	}
	return oid, nil
}

// objectID treats a malformed id the same as an unknown one.
func objectID(id, what string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.NotFound(what + " not found")
	}
	return oid, nil
}

// storeErr maps repository errors onto the taxonomy.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(what + " not found")
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict(what + " already exists")
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Wrap(apperr.KindInternal, "failed to access "+what, err)
}
