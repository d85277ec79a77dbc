package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("redis: connection refused")
	err := Wrap(cause, ErrCodeInternal, "save session")

	assert.Equal(t, "save session: redis: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NotFound("session not found")
	assert.Equal(t, "session not found", bare.Error())
}

func TestCodePredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("x")))
	assert.True(t, IsConflict(Conflict("x")))
	assert.True(t, IsValidation(Validationf("bad field %q", "user_id")))
	assert.True(t, IsRateLimited(RateLimited("slow down")))
	assert.True(t, IsUnauthorized(Unauthorized("no")))

	assert.False(t, IsNotFound(Internal("x")))
	assert.False(t, IsRateLimited(nil))

	// Predicates see through wrapping.
	wrapped := fmt.Errorf("outer: %w", RateLimited("x"))
	assert.True(t, IsRateLimited(wrapped))
}

func TestMapDBError(t *testing.T) {
	assert.NoError(t, MapDBError(nil))

	assert.True(t, IsNotFound(MapDBError(pgx.ErrNoRows)))

	timeout := MapDBError(context.DeadlineExceeded)
	var appErr *AppError
	require.ErrorAs(t, timeout, &appErr)
	assert.Equal(t, ErrCodeTimeout, appErr.Code)

	unique := MapDBError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	assert.True(t, IsConflict(unique))

	fk := MapDBError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})
	assert.True(t, IsValidation(fk))

	other := fmt.Errorf("not a db error")
	assert.Equal(t, other, MapDBError(other))
}
