// AngelaMos | 2026
// errors.go

package entity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/carterperez-dev/tfg-registry/internal/core"
)

// Normalize classifies a store failure into an error kind scoped to the
// entity. An *core.AppError is returned untouched.
func Normalize(
	ctx context.Context,
	logger *slog.Logger,
	kind Kind,
	err error,
	op, id string,
) error {
	if err == nil {
		return nil
	}
	if _, ok := core.IsAppError(err); ok {
		return err
	}

	var violation *core.FieldViolation

	switch {
	case errors.Is(err, core.ErrInvalidID):
		return core.E(core.CodeInvalidID).Wrap(err)
	case errors.Is(err, core.ErrNotFound):
		return core.NotFoundError(string(kind)).Wrap(err)
	case errors.Is(err, core.ErrDuplicateKey):
		return core.AlreadyExistsError(string(kind)).Wrap(err)
	case errors.As(err, &violation):
		return core.ValidationError(core.FieldError{
			Field:   violation.Field,
			Message: violation.Message,
		}).Wrap(err)
	}

	logger.ErrorContext(ctx, "entity operation failed",
		"entity", kind,
		"operation", op,
		"id", id,
		"error", err,
	)
	return core.E(core.CodeDefault).Wrap(err)
}
