package sqlite

import (
	"strings"

	"content-sync/internal/shared/errors"
)

const (
	msgNoSuchColumn  = "no such column: "
	msgNoColumnNamed = "has no column named "
	msgNoSuchTable   = "no such table"
	msgConstraint    = "constraint failed"
	msgReadonly      = "readonly database"
)

// classify turns a driver error into the shared error taxonomy. The unknown
// column case is what the query resolver falls back on.
func classify(collection string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()

	if col, ok := columnAfter(msg, msgNoSuchColumn); ok {
		return errors.NewSchemaMismatchError(collection, col).WithComponent("sqlite_backend")
	}
	if col, ok := columnAfter(msg, msgNoColumnNamed); ok {
		return errors.NewSchemaMismatchError(collection, col).WithComponent("sqlite_backend")
	}

	switch {
	case strings.Contains(msg, msgNoSuchTable):
		return errors.NewNotFoundError("collection " + collection).
			WithCode(errors.CodeUnknownCollection).
			WithCause(err)
	case strings.Contains(msg, msgConstraint):
		return errors.NewConflictError(msg).WithCause(err)
	case strings.Contains(msg, msgReadonly):
		return errors.NewAuthorizationError(msg).WithCause(err)
	default:
		return errors.NewInfrastructureError("sqlite: " + msg).WithCause(err)
	}
}

func columnAfter(msg, marker string) (string, bool) {
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", false
	}
	rest := msg[i+len(marker):]
	if end := strings.IndexAny(rest, " ()\t\n"); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.Trim(rest, `"'`)
	if j := strings.LastIndex(rest, "."); j >= 0 {
		rest = rest[j+1:]
	}
	return rest, rest != ""
}
