package service

import (
	"context"
	"testing"

	"penfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersByName(names map[string]uint) *userRepoStub {
	users := noopUserRepo()
	users.getByUsernameFn = func(_ context.Context, username string) (*models.User, error) {
		id, ok := names[username]
		if !ok {
			return nil, nil
		}
		return &models.User{ID: id, Username: username}, nil
	}
	return users
}

func TestFollowService_Follow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	users := usersByName(map[string]uint{"leo": 1, "anna": 2})

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()
		svc := NewFollowService(noopFollowRepo(), users)
		_, err := svc.Follow(ctx, FollowInput{AuthorUsername: "anna"})
		assertCode(t, err, models.CodeUnauthenticated)
	})

	t.Run("unknown author", func(t *testing.T) {
		t.Parallel()
		svc := NewFollowService(noopFollowRepo(), users)
		_, err := svc.Follow(ctx, FollowInput{UserID: 1, AuthorUsername: "ghost"})
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("self follow is a no-op", func(t *testing.T) {
		t.Parallel()
		follows := noopFollowRepo()
		follows.createFn = func(_ context.Context, _, _ uint) (bool, error) {
			t.Fatal("create must not be called")
			return false, nil
		}
		svc := NewFollowService(follows, users)
		res, err := svc.Follow(ctx, FollowInput{UserID: 1, AuthorUsername: "leo"})
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Equal(t, "leo", res.Author.Username)
	})

	t.Run("reports whether an edge was created", func(t *testing.T) {
		t.Parallel()
		follows := noopFollowRepo()
		follows.createFn = func(_ context.Context, userID, authorID uint) (bool, error) {
			assert.Equal(t, uint(1), userID)
			assert.Equal(t, uint(2), authorID)
			return false, nil
		}
		svc := NewFollowService(follows, users)
		res, err := svc.Follow(ctx, FollowInput{UserID: 1, AuthorUsername: "anna"})
		require.NoError(t, err)
		assert.False(t, res.Created)
	})
}

func TestFollowService_Unfollow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var removed [2]uint
	follows := noopFollowRepo()
	follows.deleteFn = func(_ context.Context, userID, authorID uint) error {
		removed = [2]uint{userID, authorID}
		return nil
	}
	svc := NewFollowService(follows, usersByName(map[string]uint{"anna": 2}))

	author, err := svc.Unfollow(ctx, FollowInput{UserID: 1, AuthorUsername: "anna"})
	require.NoError(t, err)
	assert.Equal(t, uint(2), author.ID)
	assert.Equal(t, [2]uint{1, 2}, removed)

	_, err = svc.Unfollow(ctx, FollowInput{AuthorUsername: "anna"})
	assertCode(t, err, models.CodeUnauthenticated)
}
