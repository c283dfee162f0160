package service

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fathima-sithara/chaty/internal/apperr"
	"github.com/fathima-sithara/chaty/internal/models"
	"github.com/fathima-sithara/chaty/internal/repository"
)

// Notifier delivers change events after a mutation has been persisted.
type Notifier interface {
	Notify(ev models.Event, topics ...string)
}

func parseID(op, field, raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Ef(apperr.Validation, op, "invalid %s %q", field, raw)
	}
	return id, nil
}

// storeErr maps repository errors onto the service error kinds.
func storeErr(op string, err error, notFound string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Ef(apperr.NotFound, op, "%s", notFound)
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.E(apperr.Conflict, op, err)
	default:
		return apperr.E(apperr.Persistence, op, err)
	}
}

func hexes(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
