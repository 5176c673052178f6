package errors

import (
	"database/sql"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrNotFound, "item 7 not found")
	require.True(t, stdErrors.Is(err, ErrNotFound))
	assert.False(t, stdErrors.Is(err, ErrAlreadyExists))
	assert.Equal(t, "item 7 not found", err.Message)
	assert.Equal(t, http.StatusNotFound, err.Status)
}

func TestWrapAsKeepsCause(t *testing.T) {
	err := WrapAs(ErrTransient, sql.ErrConnDone, "")
	require.True(t, IsKind(err, ErrTransient))
	assert.True(t, stdErrors.Is(err, sql.ErrConnDone))
	assert.Equal(t, ErrTransient.Message, err.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)

	wrapped := fmt.Errorf("outer: %w", Clone(ErrPermissionDenied, "not yours"))
	assert.Equal(t, ErrPermissionDenied.Code, FromError(wrapped).Code)
	assert.Nil(t, FromError(nil))
}
