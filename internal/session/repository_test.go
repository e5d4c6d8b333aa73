package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suseoaa/oaacore/internal/models"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	t.Run("load missing returns nil nil", func(t *testing.T) {
		s, err := repo.Load(ctx, "2021001")
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("save and load", func(t *testing.T) {
		err := repo.Save(ctx, &models.Session{
			StudentID: "2021001",
			Cookies:   []models.SessionCookie{{Name: "JSESSIONID", Value: "abc"}},
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)

		s, err := repo.Load(ctx, "2021001")
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "abc", s.Cookies[0].Value)
	})

	t.Run("loaded session is a copy", func(t *testing.T) {
		s, err := repo.Load(ctx, "2021001")
		require.NoError(t, err)
		s.StudentID = "mutated"

		again, err := repo.Load(ctx, "2021001")
		require.NoError(t, err)
		assert.Equal(t, "2021001", again.StudentID)
	})

	t.Run("expired session counts as missing", func(t *testing.T) {
		err := repo.Save(ctx, &models.Session{
			StudentID: "2021002",
			CreatedAt: time.Now().Add(-25 * time.Hour),
			ExpiresAt: time.Now().Add(-time.Hour),
		})
		require.NoError(t, err)

		s, err := repo.Load(ctx, "2021002")
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "2021001"))
		s, err := repo.Load(ctx, "2021001")
		require.NoError(t, err)
		assert.Nil(t, s)
	})
}
