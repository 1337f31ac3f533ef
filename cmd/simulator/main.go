package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"memories/internal/config"
	"memories/internal/logger"
	"memories/simulator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	simCfg := simulator.DefaultSimConfig()
	simCfg.JWTSecret = cfg.JWTSecret
	simCfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)

	flag.StringVar(&simCfg.BaseURL, "url", simCfg.BaseURL, "base URL of the post API")
	flag.IntVar(&simCfg.NumUsers, "users", simCfg.NumUsers, "number of simulated users")
	flag.IntVar(&simCfg.Workers, "workers", simCfg.Workers, "concurrent request workers")
	flag.DurationVar(&simCfg.SimulationTime, "duration", simCfg.SimulationTime, "how long to run")
	flag.Float64Var(&simCfg.PostFrequency, "posts", simCfg.PostFrequency, "posts per user per hour")
	flag.Float64Var(&simCfg.CommentFrequency, "comments", simCfg.CommentFrequency, "comments per user per hour")
	flag.Float64Var(&simCfg.LikeFrequency, "likes", simCfg.LikeFrequency, "like toggles per user per hour")
	flag.Float64Var(&simCfg.SearchFrequency, "searches", simCfg.SearchFrequency, "tag searches per user per hour")
	flag.Float64Var(&simCfg.BrowseFrequency, "browse", simCfg.BrowseFrequency, "list pages read per user per hour")
	flag.StringVar(&simCfg.SessionDir, "sessions", simCfg.SessionDir, "directory for per-user session files")
	flag.Parse()

	log.Info("simulation configuration",
		"url", simCfg.BaseURL,
		"users", simCfg.NumUsers,
		"duration", simCfg.SimulationTime,
		"posts_per_hour", simCfg.PostFrequency,
		"comments_per_hour", simCfg.CommentFrequency,
		"likes_per_hour", simCfg.LikeFrequency,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := simulator.NewEnhancedSimulator(simCfg, log)
	if err := sim.Run(ctx); err != nil {
		log.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	sim.GetMetrics().PrintSummary(os.Stdout)
}
