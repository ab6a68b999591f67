package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prior-it/tweb/core"
)

// convertPgError will convert known postgres errors to their core variant.
// Unknown or unhandled errors will be wrapped in core.ErrAuditFailure.
// Converting nil will simply return nil.
func convertPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UndefinedTable:
			return errors.Join(core.ErrAuditFailure, errors.New("the connections table is missing, run the migrations first"), err)
		case pgerrcode.InvalidTextRepresentation:
			return errors.Join(core.ErrAuditFailure, errors.New("invalid ip address"), err)
		}
	}
	return errors.Join(core.ErrAuditFailure, err)
}
