package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain error passes through", NewConflict("busy", nil), "CONFLICT", http.StatusConflict},
		{"wrapped domain error", fmt.Errorf("create: %w", NewInvalidTenant(9)), "INVALID_TENANT", http.StatusNotFound},
		{"no rows", pgx.ErrNoRows, "NOT_FOUND", http.StatusNotFound},
		{"fiber error", fiber.NewError(http.StatusForbidden, "nope"), "FORBIDDEN", http.StatusForbidden},
		{"unknown error", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.HTTPStatus)
		})
	}
}

func TestIdentifierCollisionUnwraps(t *testing.T) {
	cause := errors.New("duplicate")
	err := NewIdentifierCollision(5, 50, cause)

	assert.ErrorIs(t, err, cause)
	de := ToDomainError(err)
	assert.Equal(t, 50, de.Details["attempts"])
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}
