// internal/database/database.go
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"memories/internal/config"
	"memories/internal/models"
	"memories/internal/utils"
)

// Store is the persistence contract the post handlers depend on. Lookups of a
// missing record fail with a utils.ErrNotFound AppError.
type Store interface {
	CountPosts(ctx context.Context) (int64, error)
	ListPosts(ctx context.Context, offset, limit int) ([]*models.Post, error)
	SearchPosts(ctx context.Context, query string, tags []string) ([]*models.Post, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, id string, update models.PostUpdate) (bool, error)
	DeletePost(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, id, userID string) (*models.Post, error)
	AddComment(ctx context.Context, id, value string) (*models.Post, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// IsValidID reports whether id is a well-formed record identifier.
func IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// NewID returns a fresh record identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

type MongoDB struct {
	Client  *mongo.Client
	Posts   *mongo.Collection
	timeout time.Duration
	metrics *utils.MetricsCollector
}

func NewMongoDB(ctx context.Context, cfg *config.DatabaseConfig, metrics *utils.MetricsCollector) (*MongoDB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(cfg.URI).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.Info("connected to MongoDB", "database", cfg.Name, "collection", cfg.Collection)

	return NewMongoDBFromCollection(client.Database(cfg.Name).Collection(cfg.Collection), cfg.Timeout, metrics), nil
}

// NewMongoDBFromCollection wraps an existing collection handle.
func NewMongoDBFromCollection(posts *mongo.Collection, timeout time.Duration, metrics *utils.MetricsCollector) *MongoDB {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoDB{
		Client:  posts.Database().Client(),
		Posts:   posts,
		timeout: timeout,
		metrics: metrics,
	}
}

// EnsureIndexes creates the secondary index used by tag search.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	_, err := m.Posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tags", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create tags index: %w", err)
	}
	return nil
}

func (m *MongoDB) Ping(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.Client.Ping(ctx, nil)
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

func (m *MongoDB) observe(operation string, start time.Time) {
	if m.metrics != nil {
		m.metrics.AddOperationLatency(operation, time.Since(start))
	}
}
