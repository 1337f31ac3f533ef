package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"memories/internal/config"
	"memories/internal/middleware"
)

// NewRouter registers every route on a gorilla/mux router and wraps it with
// authentication, request logging, CORS and tracing. The wrappers sit outside
// the router so unmatched paths and methods are logged and counted too.
// /posts/search is registered before /posts/{id} so the literal segment wins.
func NewRouter(s *Server, cfg *config.Config) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RecordRoute)

	r.HandleFunc("/health", s.HandleHealth()).Methods(http.MethodGet)
	if cfg.Server.MetricsEnabled && s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/posts", s.HandleGetPosts()).Methods(http.MethodGet)
	r.HandleFunc("/posts", s.HandleCreatePost()).Methods(http.MethodPost)
	r.HandleFunc("/posts/search", s.HandleSearchPosts()).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}", s.HandleGetPost()).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}", s.HandleUpdatePost()).Methods(http.MethodPatch)
	r.HandleFunc("/posts/{id}", s.HandleDeletePost()).Methods(http.MethodDelete)
	r.HandleFunc("/posts/{id}/likePost", s.HandleLikePost()).Methods(http.MethodPatch)
	r.HandleFunc("/posts/{id}/commentPost", s.HandleCommentPost()).Methods(http.MethodPost)

	var handler http.Handler = r
	handler = middleware.Authenticate(cfg.JWTSecret)(handler)
	handler = middleware.RequestLogger(s.Logger, s.Metrics)(handler)
	handler = middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.AllowedOrigins))(handler)
	return otelhttp.NewHandler(handler, cfg.Tracing.ServiceName)
}
