package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cenkalti/backoff/v4"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"memories/internal/client"
	"memories/internal/middleware"
)

// SimConfig controls the simulated load. Frequencies are actions per user per hour.
type SimConfig struct {
	NumUsers         int
	Workers          int
	SimulationTime   time.Duration
	TickInterval     time.Duration
	PostFrequency    float64
	CommentFrequency float64
	LikeFrequency    float64
	SearchFrequency  float64
	BrowseFrequency  float64
	BaseURL          string
	JWTSecret        string
	TokenTTL         time.Duration
	SessionDir       string
	MaxRetries       uint64
	RetryInterval    time.Duration
	ReportInterval   time.Duration
}

// DefaultSimConfig mirrors a small local run against the default server port.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		NumUsers:         10,
		Workers:          5,
		SimulationTime:   2 * time.Minute,
		TickInterval:     500 * time.Millisecond,
		PostFrequency:    120,
		CommentFrequency: 240,
		LikeFrequency:    360,
		SearchFrequency:  120,
		BrowseFrequency:  240,
		BaseURL:          client.DefaultBaseURL,
		JWTSecret:        "test",
		TokenTTL:         time.Hour,
		SessionDir:       filepath.Join(os.TempDir(), "memories-sim"),
		MaxRetries:       3,
		RetryInterval:    200 * time.Millisecond,
		ReportInterval:   10 * time.Second,
	}
}

type SimulationStats struct {
	StartTime time.Time

	TotalRequests  atomic.Int64
	FailedRequests atomic.Int64
	Retries        atomic.Int64
	TotalPosts     atomic.Int64
	TotalComments  atomic.Int64
	TotalLikes     atomic.Int64
	TotalSearches  atomic.Int64
	PagesRead      atomic.Int64

	mu           sync.Mutex
	totalLatency time.Duration
}

// SimulatedUser is one signed-in user with its own session file.
type SimulatedUser struct {
	ID     string
	Name   string
	client *client.Client
}

type EnhancedSimulator struct {
	config SimConfig
	stats  *SimulationStats
	users  []*SimulatedUser
	log    *slog.Logger

	mu      sync.RWMutex
	postIDs []string
}

func NewEnhancedSimulator(config SimConfig, log *slog.Logger) *EnhancedSimulator {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &EnhancedSimulator{
		config: config,
		stats:  &SimulationStats{StartTime: time.Now()},
		log:    log,
	}
}

// Run creates the users and drives activity until ctx is done or
// SimulationTime elapses.
func (s *EnhancedSimulator) Run(ctx context.Context) error {
	s.log.Info("starting simulation", "users", s.config.NumUsers, "workers", s.config.Workers, "target", s.config.BaseURL)

	if err := s.initialize(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if s.config.SimulationTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.SimulationTime)
		defer cancel()
	}

	s.stats.StartTime = time.Now()
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan *SimulatedUser, s.config.Workers)

	g.Go(func() error {
		defer close(jobs)
		ticker := time.NewTicker(s.config.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				for _, user := range s.users {
					select {
					case jobs <- user:
					case <-gctx.Done():
						return nil
					}
				}
			}
		}
	})

	for i := 0; i < s.config.Workers; i++ {
		g.Go(func() error {
			for user := range jobs {
				s.act(gctx, user)
			}
			return nil
		})
	}

	if s.config.ReportInterval > 0 {
		g.Go(func() error {
			s.collectMetrics(gctx)
			return nil
		})
	}

	return g.Wait()
}

func (s *EnhancedSimulator) initialize() error {
	s.users = make([]*SimulatedUser, 0, s.config.NumUsers)
	for i := 0; i < s.config.NumUsers; i++ {
		user, err := s.newUser()
		if err != nil {
			return err
		}
		s.users = append(s.users, user)
	}
	s.log.Info("users signed in", "count", len(s.users), "sessions", s.config.SessionDir)
	return nil
}

// newUser signs a token for a fresh user id and persists it the way a
// signed-in client would.
func (s *EnhancedSimulator) newUser() (*SimulatedUser, error) {
	id := uuid.NewString()
	name := gofakeit.Username()

	token, err := middleware.GenerateToken(s.config.JWTSecret, id, s.config.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token for %s: %w", name, err)
	}
	profile, err := json.Marshal(map[string]string{"_id": id, "name": name})
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.config.SessionDir, id+".json")
	if err := client.SaveSession(path, &client.Session{Token: token, Result: profile}); err != nil {
		return nil, err
	}

	return &SimulatedUser{
		ID:     id,
		Name:   name,
		client: client.New(s.config.BaseURL, client.WithSessionPath(path)),
	}, nil
}

// withRetry runs op with exponential backoff. Client errors are not retried.
func (s *EnhancedSimulator) withRetry(ctx context.Context, name string, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.config.RetryInterval),
		backoff.WithMaxElapsedTime(0),
	)

	attempt := func() error {
		start := time.Now()
		err := op(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		s.recordRequestMetrics(start, err)

		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.stats.Retries.Add(1)
		s.log.Debug("retrying request", "op", name, "wait", wait, "error", err)
	}

	return backoff.RetryNotify(attempt, backoff.WithContext(backoff.WithMaxRetries(b, s.config.MaxRetries), ctx), notify)
}

func (s *EnhancedSimulator) recordRequestMetrics(start time.Time, err error) {
	latency := time.Since(start)
	s.stats.TotalRequests.Add(1)
	if err != nil {
		s.stats.FailedRequests.Add(1)
	}

	s.stats.mu.Lock()
	s.stats.totalLatency += latency
	s.stats.mu.Unlock()
}

func (s *EnhancedSimulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			s.log.Info("simulation progress",
				"elapsed", time.Since(s.stats.StartTime).Round(time.Second),
				"req_per_sec", fmt.Sprintf("%.2f", m.RequestsPerSecond),
				"avg_latency", m.AverageLatency,
				"posts", m.TotalPosts,
				"comments", m.TotalComments,
				"likes", m.TotalLikes,
				"failed", m.ErrorCount,
			)
		}
	}
}

// SimulationMetrics is a snapshot of SimulationStats.
type SimulationMetrics struct {
	TotalUsers        int
	TotalRequests     int64
	TotalPosts        int64
	TotalComments     int64
	TotalLikes        int64
	TotalSearches     int64
	PagesRead         int64
	Retries           int64
	ErrorCount        int64
	AverageLatency    time.Duration
	RequestsPerSecond float64
}

func (s *EnhancedSimulator) GetMetrics() SimulationMetrics {
	total := s.stats.TotalRequests.Load()

	s.stats.mu.Lock()
	var avg time.Duration
	if total > 0 {
		avg = s.stats.totalLatency / time.Duration(total)
	}
	s.stats.mu.Unlock()

	rate := 0.0
	if elapsed := time.Since(s.stats.StartTime).Seconds(); elapsed > 0 {
		rate = float64(total) / elapsed
	}

	return SimulationMetrics{
		TotalUsers:        len(s.users),
		TotalRequests:     total,
		TotalPosts:        s.stats.TotalPosts.Load(),
		TotalComments:     s.stats.TotalComments.Load(),
		TotalLikes:        s.stats.TotalLikes.Load(),
		TotalSearches:     s.stats.TotalSearches.Load(),
		PagesRead:         s.stats.PagesRead.Load(),
		Retries:           s.stats.Retries.Load(),
		ErrorCount:        s.stats.FailedRequests.Load(),
		AverageLatency:    avg,
		RequestsPerSecond: rate,
	}
}

// PrintSummary writes the final metrics to w.
func (m SimulationMetrics) PrintSummary(w io.Writer) {
	header := color.New(color.FgCyan, color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed, color.Bold)

	header.Fprintln(w, "Simulation completed")
	fmt.Fprintf(w, "  users:            %d\n", m.TotalUsers)
	fmt.Fprintf(w, "  requests:         %d (%.2f req/sec)\n", m.TotalRequests, m.RequestsPerSecond)
	fmt.Fprintf(w, "  average latency:  %v\n", m.AverageLatency)
	good.Fprintf(w, "  posts:            %d\n", m.TotalPosts)
	good.Fprintf(w, "  comments:         %d\n", m.TotalComments)
	good.Fprintf(w, "  likes toggled:    %d\n", m.TotalLikes)
	good.Fprintf(w, "  searches:         %d\n", m.TotalSearches)
	good.Fprintf(w, "  pages read:       %d\n", m.PagesRead)

	failed := good
	if m.ErrorCount > 0 {
		failed = bad
	}
	failed.Fprintf(w, "  failed requests:  %d (retries: %d)\n", m.ErrorCount, m.Retries)
}
