package actors

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"memories/internal/database"
	"memories/internal/models"
	"memories/internal/utils"
)

// Message types for Post operations
type (
	CountPostsMsg struct{}

	ListPostsMsg struct {
		Offset int
		Limit  int
	}

	SearchPostsMsg struct {
		Query string
		Tags  []string
	}

	GetPostMsg struct {
		PostID string
	}

	CreatePostMsg struct {
		Post *models.Post
	}

	UpdatePostMsg struct {
		PostID string
		Update models.PostUpdate
	}

	DeletePostMsg struct {
		PostID string
	}

	ToggleLikeMsg struct {
		PostID string
		UserID string
	}

	AddCommentMsg struct {
		PostID string
		Value  string
	}
)

// PostActor owns the in-memory post collection. Every mutation runs inside
// Receive, so concurrent likes and comments on one post are applied in turn.
// Replies are clones; callers never share the actor's records.
type PostActor struct {
	postsByID map[string]*models.Post
	order     []string // insertion order, oldest first
	metrics   *utils.MetricsCollector
}

// NewPostActor creates a new PostActor instance
func NewPostActor(metrics *utils.MetricsCollector) actor.Actor {
	return &PostActor{
		postsByID: make(map[string]*models.Post),
		order:     make([]string, 0),
		metrics:   metrics,
	}
}

// Receive handles incoming messages
func (a *PostActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		slog.Debug("PostActor started")
	case *actor.Stopped:
		slog.Debug("PostActor stopped")
	case *CountPostsMsg:
		context.Respond(int64(len(a.postsByID)))
	case *ListPostsMsg:
		a.handleListPosts(context, msg)
	case *SearchPostsMsg:
		a.handleSearchPosts(context, msg)
	case *GetPostMsg:
		a.handleGetPost(context, msg)
	case *CreatePostMsg:
		a.handleCreatePost(context, msg)
	case *UpdatePostMsg:
		a.handleUpdatePost(context, msg)
	case *DeletePostMsg:
		a.handleDeletePost(context, msg)
	case *ToggleLikeMsg:
		a.handleToggleLike(context, msg)
	case *AddCommentMsg:
		a.handleAddComment(context, msg)
	default:
		slog.Warn("PostActor: unknown message type", "type", fmt.Sprintf("%T", msg))
	}
}

func (a *PostActor) handleListPosts(context actor.Context, msg *ListPostsMsg) {
	defer a.observe("list_posts", time.Now())

	posts := make([]*models.Post, 0, max(msg.Limit, 0))
	skipped := 0
	for i := len(a.order) - 1; i >= 0 && len(posts) < msg.Limit; i-- {
		if skipped < msg.Offset {
			skipped++
			continue
		}
		posts = append(posts, a.postsByID[a.order[i]].Clone())
	}
	context.Respond(posts)
}

func (a *PostActor) handleSearchPosts(context actor.Context, msg *SearchPostsMsg) {
	defer a.observe("search_posts", time.Now())

	query := strings.ToLower(msg.Query)
	posts := make([]*models.Post, 0)
	for _, id := range a.order {
		post := a.postsByID[id]
		if strings.Contains(strings.ToLower(post.Title), query) || sharesTag(post.Tags, msg.Tags) {
			posts = append(posts, post.Clone())
		}
	}
	context.Respond(posts)
}

func sharesTag(have, want []string) bool {
	for _, tag := range want {
		if slices.Contains(have, tag) {
			return true
		}
	}
	return false
}

func (a *PostActor) handleGetPost(context actor.Context, msg *GetPostMsg) {
	if post, exists := a.postsByID[msg.PostID]; exists {
		context.Respond(post.Clone())
	} else {
		context.Respond(utils.NewPostNotFoundError(msg.PostID))
	}
}

func (a *PostActor) handleCreatePost(context actor.Context, msg *CreatePostMsg) {
	defer a.observe("create_post", time.Now())

	post := msg.Post.Clone()
	if post.ID == "" {
		post.ID = database.NewID()
	}
	if _, exists := a.postsByID[post.ID]; exists {
		context.Respond(utils.NewAppError(utils.ErrDuplicate, "post already exists", nil))
		return
	}

	a.postsByID[post.ID] = post
	a.order = append(a.order, post.ID)

	slog.Debug("PostActor: created post", "id", post.ID, "creator", post.Creator)
	context.Respond(post.Clone())
}

// handleUpdatePost responds with true when the post existed.
func (a *PostActor) handleUpdatePost(context actor.Context, msg *UpdatePostMsg) {
	defer a.observe("update_post", time.Now())

	post, exists := a.postsByID[msg.PostID]
	if !exists {
		context.Respond(false)
		return
	}
	msg.Update.ApplyTo(post)
	post.Normalize()
	context.Respond(true)
}

func (a *PostActor) handleDeletePost(context actor.Context, msg *DeletePostMsg) {
	defer a.observe("delete_post", time.Now())

	if _, exists := a.postsByID[msg.PostID]; exists {
		delete(a.postsByID, msg.PostID)
		a.order = slices.DeleteFunc(a.order, func(id string) bool { return id == msg.PostID })
	}
	context.Respond(true)
}

func (a *PostActor) handleToggleLike(context actor.Context, msg *ToggleLikeMsg) {
	defer a.observe("toggle_like", time.Now())

	post, exists := a.postsByID[msg.PostID]
	if !exists {
		context.Respond(utils.NewPostNotFoundError(msg.PostID))
		return
	}
	liked := post.ToggleLike(msg.UserID)
	slog.Debug("PostActor: toggled like", "id", msg.PostID, "user", msg.UserID, "liked", liked)
	context.Respond(post.Clone())
}

func (a *PostActor) handleAddComment(context actor.Context, msg *AddCommentMsg) {
	defer a.observe("add_comment", time.Now())

	post, exists := a.postsByID[msg.PostID]
	if !exists {
		context.Respond(utils.NewPostNotFoundError(msg.PostID))
		return
	}
	post.AddComment(msg.Value)
	context.Respond(post.Clone())
}

func (a *PostActor) observe(operation string, start time.Time) {
	if a.metrics != nil {
		a.metrics.AddOperationLatency(operation, time.Since(start))
	}
}
