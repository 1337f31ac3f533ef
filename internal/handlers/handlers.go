package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"memories/internal/database"
	"memories/internal/events"
	"memories/internal/utils"
)

// MaxBodyBytes caps request bodies. Posts carry their image inline as a
// base64 data URL.
const MaxBodyBytes = 10 << 20

// Server holds the dependencies shared by the post handlers.
type Server struct {
	Store    database.Store
	Events   events.Publisher
	Metrics  *utils.MetricsCollector
	Validate *validator.Validate
	Logger   *slog.Logger
}

// NewServer creates a new Server instance with the given components. A nil
// publisher disables events; a nil logger uses slog.Default.
func NewServer(store database.Store, publisher events.Publisher, metrics *utils.MetricsCollector, logger *slog.Logger) *Server {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Store:    store,
		Events:   publisher,
		Metrics:  metrics,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Logger:   logger,
	}
}

// publish is best effort; a failed publish never changes the response.
func (s *Server) publish(ctx context.Context, e events.Event) {
	if err := s.Events.Publish(ctx, e); err != nil {
		s.Logger.Warn("failed to publish post event", "type", e.Type, "post", e.PostID, "error", err)
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(v)
}

// bodyErrorStatus is 413 for bodies over MaxBodyBytes and fallback otherwise.
func bodyErrorStatus(err error, fallback int) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return fallback
}

// writeText answers with a bare text body, as the id-guarded mutations do.
func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}

// postID reads the {id} route variable and tags the request span with it.
func postID(r *http.Request) string {
	id := mux.Vars(r)["id"]
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("post.id", id))
	return id
}

// errorStatus maps store errors onto response codes; anything that is not
// an AppError is a 500.
func errorStatus(err error) int {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return utils.AppErrorToHTTPStatus(appErr.Code)
	}
	return http.StatusInternalServerError
}

func noPostText(id string) string {
	return utils.NewPostNotFoundError(id).Message
}
