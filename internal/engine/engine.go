// Package engine provides an in-process post store backed by a protoactor
// PostActor. It satisfies database.Store for the memory backend and tests.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"memories/internal/database"
	"memories/internal/engine/actors"
	"memories/internal/models"
	"memories/internal/utils"
)

const DefaultRequestTimeout = 5 * time.Second

// Engine coordinates communication with the post actor.
type Engine struct {
	system         *actor.ActorSystem
	postActor      *actor.PID
	requestTimeout time.Duration
}

var _ database.Store = (*Engine)(nil)

func NewEngine(system *actor.ActorSystem, metrics *utils.MetricsCollector) *Engine {
	postProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewPostActor(metrics)
	})

	return &Engine{
		system:         system,
		postActor:      system.Root.Spawn(postProps),
		requestTimeout: DefaultRequestTimeout,
	}
}

// request sends msg to the post actor and waits for the reply. An AppError
// reply is returned as the error.
func (e *Engine) request(ctx context.Context, msg interface{}) (interface{}, error) {
	timeout := e.requestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, utils.NewAppError(utils.ErrActorTimeout, "request deadline exceeded", ctx.Err())
	}

	result, err := e.system.Root.RequestFuture(e.postActor, msg, timeout).Result()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrActorTimeout, "post actor did not respond", err)
	}
	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}

func unexpected(result interface{}) error {
	return utils.NewAppError(utils.ErrDatabase, fmt.Sprintf("unexpected response type %T", result), nil)
}

func (e *Engine) CountPosts(ctx context.Context) (int64, error) {
	result, err := e.request(ctx, &actors.CountPostsMsg{})
	if err != nil {
		return 0, err
	}
	n, ok := result.(int64)
	if !ok {
		return 0, unexpected(result)
	}
	return n, nil
}

func (e *Engine) ListPosts(ctx context.Context, offset, limit int) ([]*models.Post, error) {
	return e.requestPosts(ctx, &actors.ListPostsMsg{Offset: offset, Limit: limit})
}

func (e *Engine) SearchPosts(ctx context.Context, query string, tags []string) ([]*models.Post, error) {
	return e.requestPosts(ctx, &actors.SearchPostsMsg{Query: query, Tags: tags})
}

func (e *Engine) requestPosts(ctx context.Context, msg interface{}) ([]*models.Post, error) {
	result, err := e.request(ctx, msg)
	if err != nil {
		return nil, err
	}
	posts, ok := result.([]*models.Post)
	if !ok {
		return nil, unexpected(result)
	}
	return posts, nil
}

func (e *Engine) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if !database.IsValidID(id) {
		return nil, utils.NewPostNotFoundError(id)
	}
	return e.requestPost(ctx, &actors.GetPostMsg{PostID: id})
}

func (e *Engine) CreatePost(ctx context.Context, post *models.Post) error {
	if post.ID != "" && !database.IsValidID(post.ID) {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid post ID", nil)
	}
	created, err := e.requestPost(ctx, &actors.CreatePostMsg{Post: post})
	if err != nil {
		return err
	}
	post.ID = created.ID
	post.Normalize()
	return nil
}

func (e *Engine) UpdatePost(ctx context.Context, id string, update models.PostUpdate) (bool, error) {
	if !database.IsValidID(id) {
		return false, utils.NewPostNotFoundError(id)
	}
	result, err := e.request(ctx, &actors.UpdatePostMsg{PostID: id, Update: update})
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, unexpected(result)
	}
	return matched, nil
}

func (e *Engine) DeletePost(ctx context.Context, id string) error {
	if !database.IsValidID(id) {
		return utils.NewPostNotFoundError(id)
	}
	_, err := e.request(ctx, &actors.DeletePostMsg{PostID: id})
	return err
}

func (e *Engine) ToggleLike(ctx context.Context, id, userID string) (*models.Post, error) {
	if !database.IsValidID(id) {
		return nil, utils.NewPostNotFoundError(id)
	}
	return e.requestPost(ctx, &actors.ToggleLikeMsg{PostID: id, UserID: userID})
}

func (e *Engine) AddComment(ctx context.Context, id, value string) (*models.Post, error) {
	if !database.IsValidID(id) {
		return nil, utils.NewPostNotFoundError(id)
	}
	return e.requestPost(ctx, &actors.AddCommentMsg{PostID: id, Value: value})
}

func (e *Engine) requestPost(ctx context.Context, msg interface{}) (*models.Post, error) {
	result, err := e.request(ctx, msg)
	if err != nil {
		return nil, err
	}
	post, ok := result.(*models.Post)
	if !ok {
		return nil, unexpected(result)
	}
	return post, nil
}

// Ping succeeds while the post actor answers requests.
func (e *Engine) Ping(ctx context.Context) error {
	_, err := e.CountPosts(ctx)
	return err
}

// Close stops the post actor.
func (e *Engine) Close(_ context.Context) error {
	return e.system.Root.StopFuture(e.postActor).Wait()
}
