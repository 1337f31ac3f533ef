package simulator

import (
	"context"
	"math/rand"

	"github.com/brianvoe/gofakeit/v6"

	"memories/internal/client"
	"memories/internal/models"
)

// tagPool keeps tags overlapping between users so tag searches find posts.
var tagPool = []string{"travel", "food", "family", "sunset", "hiking", "city", "friends", "music"}

// act runs one tick of activity for user. Each action fires with the
// probability its frequency implies for a single tick.
func (s *EnhancedSimulator) act(ctx context.Context, user *SimulatedUser) {
	if s.chance(s.config.PostFrequency) {
		s.createPost(ctx, user)
	}
	if s.chance(s.config.BrowseFrequency) {
		s.browse(ctx, user)
	}
	if s.chance(s.config.SearchFrequency) {
		s.search(ctx, user)
	}

	postID, ok := s.randomPost()
	if !ok {
		return
	}
	if s.chance(s.config.LikeFrequency) {
		s.like(ctx, user, postID)
	}
	if s.chance(s.config.CommentFrequency) {
		s.comment(ctx, user, postID)
	}
}

func (s *EnhancedSimulator) chance(perHour float64) bool {
	p := perHour / 3600.0 * s.config.TickInterval.Seconds()
	return rand.Float64() < p
}

func (s *EnhancedSimulator) createPost(ctx context.Context, user *SimulatedUser) {
	input := models.PostInput{
		Title:        gofakeit.Sentence(4),
		Message:      gofakeit.Paragraph(1, 3, 12, " "),
		Tags:         []string{gofakeit.RandomString(tagPool), gofakeit.RandomString(tagPool)},
		SelectedFile: gofakeit.ImageURL(640, 480),
	}

	var post *models.Post
	err := s.withRetry(ctx, "create", func(ctx context.Context) error {
		var err error
		post, err = user.client.CreatePost(ctx, input)
		return err
	})
	if err != nil {
		s.log.Debug("create post failed", "user", user.Name, "error", err)
		return
	}

	s.mu.Lock()
	s.postIDs = append(s.postIDs, post.ID)
	s.mu.Unlock()
	s.stats.TotalPosts.Add(1)
}

func (s *EnhancedSimulator) browse(ctx context.Context, user *SimulatedUser) {
	s.mu.RLock()
	pages := models.PageCount(int64(len(s.postIDs)))
	s.mu.RUnlock()
	page := 1
	if pages > 1 {
		page = rand.Intn(pages) + 1
	}

	err := s.withRetry(ctx, "list", func(ctx context.Context) error {
		_, err := user.client.FetchPosts(ctx, page)
		return err
	})
	if err == nil {
		s.stats.PagesRead.Add(1)
	}
}

func (s *EnhancedSimulator) search(ctx context.Context, user *SimulatedUser) {
	query := client.SearchQuery{Tags: []string{gofakeit.RandomString(tagPool)}}
	err := s.withRetry(ctx, "search", func(ctx context.Context) error {
		_, err := user.client.FetchPostsBySearch(ctx, query)
		return err
	})
	if err == nil {
		s.stats.TotalSearches.Add(1)
	}
}

func (s *EnhancedSimulator) like(ctx context.Context, user *SimulatedUser, postID string) {
	err := s.withRetry(ctx, "like", func(ctx context.Context) error {
		_, err := user.client.LikePost(ctx, postID)
		return err
	})
	if err != nil {
		s.log.Debug("like failed", "user", user.Name, "post", postID, "error", err)
		return
	}
	s.stats.TotalLikes.Add(1)
}

func (s *EnhancedSimulator) comment(ctx context.Context, user *SimulatedUser, postID string) {
	value := user.Name + ": " + gofakeit.Sentence(6)
	err := s.withRetry(ctx, "comment", func(ctx context.Context) error {
		_, err := user.client.Comment(ctx, value, postID)
		return err
	})
	if err != nil {
		s.log.Debug("comment failed", "user", user.Name, "post", postID, "error", err)
		return
	}
	s.stats.TotalComments.Add(1)
}

func (s *EnhancedSimulator) randomPost() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.postIDs) == 0 {
		return "", false
	}
	return s.postIDs[rand.Intn(len(s.postIDs))], true
}
