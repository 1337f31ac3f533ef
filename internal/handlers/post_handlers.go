package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"memories/internal/database"
	"memories/internal/events"
	"memories/internal/middleware"
	"memories/internal/models"
	"memories/internal/utils"
)

// CommentRequest is the body of the comment operation.
type CommentRequest struct {
	Value string `json:"value"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Data []*models.Post `json:"data"`
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func parseTags(raw string) []string {
	tags := make([]string, 0)
	for _, tag := range strings.Split(raw, ",") {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// HandleGetPosts returns one page of posts, most recent first.
func (s *Server) HandleGetPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parsePage(r.URL.Query().Get("page"))

		total, err := s.Store.CountPosts(r.Context())
		if err != nil {
			writeMessage(w, http.StatusNotFound, err.Error())
			return
		}

		posts, err := s.Store.ListPosts(r.Context(), models.PageOffset(page), models.PageSize)
		if err != nil {
			writeMessage(w, http.StatusNotFound, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, models.PostPage{
			Data:          posts,
			CurrentPage:   page,
			NumberOfPages: models.PageCount(total),
		})
	}
}

// HandleSearchPosts matches posts by title substring or shared tag.
func (s *Server) HandleSearchPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("searchQuery")
		if query == "" {
			query = "none"
		}
		tags := parseTags(r.URL.Query().Get("tags"))

		posts, err := s.Store.SearchPosts(r.Context(), query, tags)
		if err != nil {
			writeMessage(w, http.StatusNotFound, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, SearchResponse{Data: posts})
	}
}

func (s *Server) HandleGetPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := postID(r)

		post, err := s.Store.GetPost(r.Context(), id)
		if err != nil {
			writeMessage(w, http.StatusNotFound, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, post)
	}
}

// HandleCreatePost stores a new post authored by the caller.
func (s *Server) HandleCreatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input models.PostInput
		if err := decodeBody(w, r, &input); err != nil {
			writeMessage(w, bodyErrorStatus(err, http.StatusConflict), err.Error())
			return
		}

		userID, _ := middleware.UserIDFromContext(r.Context())
		post := (&models.Post{
			Title:        input.Title,
			Message:      input.Message,
			Tags:         input.Tags,
			SelectedFile: input.SelectedFile,
			Creator:      userID,
			CreatedAt:    time.Now().UTC(),
		}).Normalize()

		if err := s.Validate.Struct(post); err != nil {
			writeMessage(w, http.StatusConflict, err.Error())
			return
		}

		if err := s.Store.CreatePost(r.Context(), post); err != nil {
			writeMessage(w, http.StatusConflict, err.Error())
			return
		}

		s.publish(r.Context(), events.New(events.PostCreated, post.ID, userID))
		writeJSON(w, http.StatusCreated, post)
	}
}

// HandleUpdatePost overwrites the supplied fields and echoes the payload.
func (s *Server) HandleUpdatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := postID(r)
		if !database.IsValidID(id) {
			writeText(w, http.StatusNotFound, noPostText(id))
			return
		}

		var update models.PostUpdate
		if err := decodeBody(w, r, &update); err != nil {
			writeMessage(w, bodyErrorStatus(err, http.StatusBadRequest), err.Error())
			return
		}

		matched, err := s.Store.UpdatePost(r.Context(), id, update)
		if err != nil {
			if utils.IsErrorCode(err, utils.ErrNotFound) {
				writeText(w, http.StatusNotFound, noPostText(id))
				return
			}
			writeMessage(w, errorStatus(err), err.Error())
			return
		}
		if !matched {
			s.Logger.Warn("update matched no post", "id", id)
		}

		userID, _ := middleware.UserIDFromContext(r.Context())
		s.publish(r.Context(), events.New(events.PostUpdated, id, userID))

		update.ID = id
		writeJSON(w, http.StatusOK, update)
	}
}

func (s *Server) HandleDeletePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := postID(r)
		if !database.IsValidID(id) {
			writeText(w, http.StatusNotFound, noPostText(id))
			return
		}

		if err := s.Store.DeletePost(r.Context(), id); err != nil {
			writeMessage(w, errorStatus(err), err.Error())
			return
		}

		userID, _ := middleware.UserIDFromContext(r.Context())
		s.publish(r.Context(), events.New(events.PostDeleted, id, userID))
		writeMessage(w, http.StatusOK, "Post deleted successfully.")
	}
}

// HandleLikePost toggles the caller's like. Anonymous callers get a 200
// carrying an "Unauthenticated" message, which existing clients rely on.
func (s *Server) HandleLikePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusOK, "Unauthenticated")
			return
		}

		id := postID(r)
		if !database.IsValidID(id) {
			writeText(w, http.StatusNotFound, noPostText(id))
			return
		}

		post, err := s.Store.ToggleLike(r.Context(), id, userID)
		if err != nil {
			s.writeMutationError(w, id, err)
			return
		}

		s.publish(r.Context(), events.New(events.PostLiked, id, userID))
		writeJSON(w, http.StatusOK, post)
	}
}

func (s *Server) HandleCommentPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := postID(r)
		if !database.IsValidID(id) {
			writeText(w, http.StatusNotFound, noPostText(id))
			return
		}

		var req CommentRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeMessage(w, bodyErrorStatus(err, http.StatusBadRequest), err.Error())
			return
		}

		post, err := s.Store.AddComment(r.Context(), id, req.Value)
		if err != nil {
			s.writeMutationError(w, id, err)
			return
		}

		userID, _ := middleware.UserIDFromContext(r.Context())
		s.publish(r.Context(), events.New(events.PostCommented, id, userID))
		writeJSON(w, http.StatusOK, post)
	}
}

func (s *Server) writeMutationError(w http.ResponseWriter, id string, err error) {
	if utils.IsErrorCode(err, utils.ErrNotFound) {
		writeText(w, http.StatusNotFound, noPostText(id))
		return
	}
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("post mutation failed", "id", id, "error", err)
	}
	writeMessage(w, status, err.Error())
}
