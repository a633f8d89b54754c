package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/princinho/postboard/apperror"
	"github.com/princinho/postboard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMemoryRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository[models.Post]()
	sender := bson.NewObjectID()

	post := &models.Post{Title: "First Post", Content: "hello", SenderID: sender}
	require.NoError(t, repo.Create(ctx, post))
	assert.False(t, post.ID.IsZero())
	assert.False(t, post.CreatedAt.IsZero())

	got, err := repo.FindByID(ctx, post.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "First Post", got.Title)
	assert.Equal(t, sender, got.SenderID)

	updated, err := repo.FindByIDAndUpdate(ctx, post.ID.Hex(), bson.M{"title": "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "hello", updated.Content)

	deleted, err := repo.FindByIDAndDelete(ctx, post.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, post.ID, deleted.ID)

	_, err = repo.FindByID(ctx, post.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByIDAndDelete(ctx, post.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_InvalidID(t *testing.T) {
	repo := NewMemoryRepository[models.Post]()

	_, err := repo.FindByID(context.Background(), "12345")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestMemoryRepository_FindFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository[models.Comment]()
	postA, postB := bson.NewObjectID(), bson.NewObjectID()

	for _, c := range []*models.Comment{
		{Message: "a1", PostID: postA},
		{Message: "a2", PostID: postA},
		{Message: "b1", PostID: postB},
	} {
		require.NoError(t, repo.Create(ctx, c))
	}

	all, err := repo.Find(ctx, bson.M{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onA, err := repo.Find(ctx, bson.M{"post_id": postA})
	require.NoError(t, err)
	require.Len(t, onA, 2)
	assert.Equal(t, "a1", onA[0].Message)

	byMessage, err := repo.Find(ctx, bson.M{"message": "b1"})
	require.NoError(t, err)
	require.Len(t, byMessage, 1)
	assert.Equal(t, postB, byMessage[0].PostID)
}

func TestMemoryUserRepository_UniqueEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	require.NoError(t, repo.Create(ctx, &models.User{Name: "alice", Email: "a@x.com", RefreshTokens: []string{}}))
	err := repo.Create(ctx, &models.User{Name: "alice2", Email: "a@x.com", RefreshTokens: []string{}})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	// email is optional; several users without one are fine
	require.NoError(t, repo.Create(ctx, &models.User{Name: "bob", RefreshTokens: []string{}}))
	require.NoError(t, repo.Create(ctx, &models.User{Name: "carol", RefreshTokens: []string{}}))

	byEmail, err := repo.FindByLogin(ctx, "", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", byEmail.Name)

	byName, err := repo.FindByLogin(ctx, "bob", "")
	require.NoError(t, err)
	assert.Empty(t, byName.Email)
}

func TestMemoryUserRepository_AllowList(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	user := &models.User{Name: "alice", RefreshTokens: []string{"t1"}}
	require.NoError(t, repo.Create(ctx, user))
	id := user.ID.Hex()

	require.NoError(t, repo.PushRefreshToken(ctx, id, "t2"))

	ok, err := repo.RotateRefreshToken(ctx, id, "t1", "t3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RotateRefreshToken(ctx, id, "t1", "t4")
	require.NoError(t, err)
	assert.False(t, ok, "a consumed token must not rotate twice")

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t3"}, got.RefreshTokens)

	ok, err = repo.PullRefreshToken(ctx, id, "t2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.ClearRefreshTokens(ctx, id))
	got, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.RefreshTokens)
	assert.Equal(t, user.CreatedAt, got.CreatedAt)

	assert.ErrorIs(t, repo.PushRefreshToken(ctx, bson.NewObjectID().Hex(), "x"), ErrNotFound)
}

func TestMemoryUserRepository_ConcurrentRotateSameToken(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	user := &models.User{Name: "alice", RefreshTokens: []string{"shared", "other"}}
	require.NoError(t, repo.Create(ctx, user))

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		rotated int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.RotateRefreshToken(ctx, user.ID.Hex(), "shared", bson.NewObjectID().Hex())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				rotated++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, rotated)
	got, err := repo.FindByID(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, got.RefreshTokens, 2)
	assert.Contains(t, got.RefreshTokens, "other")
}
