package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memories/internal/database"
	"memories/internal/models"
	"memories/internal/utils"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(actor.NewActorSystem(), utils.NewMetricsCollector())
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func createPost(t *testing.T, e *Engine, title string) *models.Post {
	t.Helper()
	post := &models.Post{Title: title, Message: "m", Creator: "u1"}
	require.NoError(t, e.CreatePost(context.Background(), post))
	return post
}

func TestEngineCreateAndGet(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	post := createPost(t, e, "hello")
	assert.True(t, database.IsValidID(post.ID))

	got, err := e.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Title)

	require.NoError(t, e.Ping(ctx))
}

func TestEngineMalformedID(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.GetPost(ctx, "abc")
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	_, err = e.ToggleLike(ctx, "abc", "u1")
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	_, err = e.AddComment(ctx, "abc", "x")
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	_, err = e.UpdatePost(ctx, "abc", models.PostUpdate{})
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
	assert.True(t, utils.IsErrorCode(e.DeletePost(ctx, "abc"), utils.ErrNotFound))
}

func TestEngineMissingPost(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	id := database.NewID()

	_, err := e.GetPost(ctx, id)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))

	matched, err := e.UpdatePost(ctx, id, models.PostUpdate{})
	require.NoError(t, err)
	assert.False(t, matched)

	assert.NoError(t, e.DeletePost(ctx, id))
}

func TestEngineConcurrentLikesAreNotLost(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	post := createPost(t, e, "popular")

	users := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := e.ToggleLike(ctx, post.ID, userID)
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	got, err := e.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, users, got.Likes)
}

func TestEngineConcurrentCommentsAreNotLost(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	post := createPost(t, e, "chatty")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.AddComment(ctx, post.ID, "same")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := e.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, 20)
}

func TestEngineExpiredContext(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := e.CountPosts(ctx)
	assert.True(t, utils.IsErrorCode(err, utils.ErrActorTimeout))
}
