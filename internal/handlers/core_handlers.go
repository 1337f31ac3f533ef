package handlers

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status     string    `json:"status"`
	Posts      int64     `json:"posts"`
	Error      string    `json:"error,omitempty"`
	ServerTime time.Time `json:"serverTime"`
}

// HandleHealth reports whether the store answers and how many posts it holds.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status:     "unavailable",
				Error:      err.Error(),
				ServerTime: time.Now(),
			})
			return
		}

		count, err := s.Store.CountPosts(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status:     "unavailable",
				Error:      err.Error(),
				ServerTime: time.Now(),
			})
			return
		}

		writeJSON(w, http.StatusOK, healthResponse{
			Status:     "healthy",
			Posts:      count,
			ServerTime: time.Now(),
		})
	}
}
