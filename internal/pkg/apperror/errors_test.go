package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeUnauthenticated:   http.StatusUnauthorized,
		ErrCodeUnauthorized:      http.StatusForbidden,
		ErrCodeNotFound:          http.StatusNotFound,
		ErrCodeValidation:        http.StatusBadRequest,
		ErrCodeInvalidTransition: http.StatusConflict,
		ErrCodeAlreadyDisputed:   http.StatusConflict,
		ErrCodeDisputeClosed:     http.StatusConflict,
		ErrCodeConflictRace:      http.StatusConflict,
		ErrCodeInternal:          http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, string(code))
	}
}

func TestErrorsIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("context: %w", ErrDisputeClosed.WithDetail("dispute_id", "1"))
	assert.True(t, errors.Is(err, ErrDisputeClosed))
	assert.False(t, errors.Is(err, ErrAlreadyDisputed))
}

func TestInvalidTransition_CarriesStatuses(t *testing.T) {
	err := InvalidTransition("OPEN", "COMPLETED", "нельзя")
	assert.Equal(t, "OPEN", err.Details["current_status"])
	assert.Equal(t, "COMPLETED", err.Details["requested_status"])
	assert.True(t, IsInvalidTransition(err))
}

func TestWithDetail_DoesNotMutateTemplate(t *testing.T) {
	_ = ErrConflictRace.WithDetail("id", "1")
	assert.Empty(t, ErrConflictRace.Details)
}

func TestCodeOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("sql: boom")))
}
