package mongodb

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/bustrack/internal/apperr"
)

// translate maps driver errors onto the application taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("%s not found", what)
	case mongo.IsDuplicateKeyError(err):
		return apperr.Conflict("%s already exists", what)
	default:
		return apperr.Store(err, "%s", what)
	}
}
