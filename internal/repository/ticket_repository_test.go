package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestTicketGetByIDRejectsNonUUIDWithoutQuery(t *testing.T) {
	repo := NewTicketRepository(nil)

	for _, id := range []string{"FR5-404", "legacy-1", ""} {
		_, err := repo.GetByID(context.Background(), 5, id)
		assert.ErrorIs(t, err, pgx.ErrNoRows, id)
	}
}

func TestLikeEscape(t *testing.T) {
	assert.Equal(t, `FR\_5\%-`, likeEscape("FR_5%-"))
	assert.Equal(t, `A\\B`, likeEscape(`A\B`))
}
