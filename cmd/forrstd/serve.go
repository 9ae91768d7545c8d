package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/forrst/forrst/internal/cancellation"
	"github.com/forrst/forrst/internal/config"
	"github.com/forrst/forrst/internal/demo"
	"github.com/forrst/forrst/internal/envelope"
	"github.com/forrst/forrst/internal/extension"
	"github.com/forrst/forrst/internal/kvstore"
	"github.com/forrst/forrst/internal/lock"
	"github.com/forrst/forrst/internal/lockfile"
	"github.com/forrst/forrst/internal/maintenance"
	"github.com/forrst/forrst/internal/pipeline"
	"github.com/forrst/forrst/internal/ratelimit"
	"github.com/forrst/forrst/internal/replay"
	"github.com/forrst/forrst/internal/replaynotify"
	"github.com/forrst/forrst/internal/server"
	"github.com/forrst/forrst/internal/sysfn"
	"github.com/forrst/forrst/internal/validate"
	"github.com/forrst/forrst/internal/version"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve starts the HTTP transport and registers the reserved and demo functions",
	RunE:  runServe,
}

// openStore picks a kvstore.Store backend per cfg.RedisAddr: Redis when set,
// otherwise a file-backed lockfile.Store (falling back to an in-memory store
// if the file cannot be opened, so a read-only filesystem never blocks boot).
func openStore(cfg config.Config) (kvstore.Store, *redis.Client) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return kvstore.NewRedis(client), client
	}
	store, err := lockfile.NewStore(cfg.LockStorePath)
	if err != nil {
		return kvstore.NewMemory(), nil
	}
	return store, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log := slog.Default()
	store, redisClient := openStore(cfg)

	functions := version.NewRegistry()
	extensions := extension.NewRegistry()
	maint := maintenance.NewMemoryStore()
	locks := lock.New(store)
	cancel := cancellation.New(store)
	replayQueue := replay.New()
	replayHub := replaynotify.NewHub(log)

	bootTime := time.Now()
	if err := sysfn.Register(functions, extensions, locks, cancel, sysfn.Capabilities{
		ProtocolName:      cfg.ProtocolName,
		SupportedVersions: cfg.SupportedVersions,
		MaxRequestBytes:   cfg.MaxRequestBytes,
		MaxResponseBytes:  cfg.MaxResponseBytes,
	}, bootTime); err != nil {
		return fmt.Errorf("registering system functions: %w", err)
	}
	if err := demo.RegisterFunctions(functions); err != nil {
		return fmt.Errorf("registering demo functions: %w", err)
	}
	if err := demo.RegisterExtensions(extensions, log); err != nil {
		return fmt.Errorf("registering demo extensions: %w", err)
	}
	if err := demo.RegisterReplayFunction(functions, replayQueue, replayHub); err != nil {
		return fmt.Errorf("registering replay demo function: %w", err)
	}

	engine := pipeline.New(pipeline.Config{
		ProtocolName:        cfg.ProtocolName,
		SupportedMajor:      1,
		SupportedVersions:   cfg.SupportedVersions,
		EchoProtocolVersion: cfg.SupportedVersions[0],
		RateLimitScope:      ratelimit.ScopeUser,
		RateLimitKeyFunc:    rateLimitKey,
	}, functions, extensions, maint, validate.New(), log)

	if redisClient != nil {
		reporter := ratelimit.NewReporter(redisClient, ratelimit.BucketConfig{
			Limit:             600,
			RequestsPerSecond: 10,
			Window:            ratelimit.Window{Value: 1, Unit: "minute"},
		})
		engine = engine.WithRateLimiter(reporter, rateLimitKey)
	}

	srv := server.New(engine, server.Config{
		Addr:            cfg.Addr,
		MaxRequestBytes: cfg.MaxRequestBytes,
	}, log).WithReplayHub(replayHub)

	ctx, stop := signalContext()
	defer stop()

	log.Info("forrstd starting", "addr", srv.Addr())
	return srv.Serve(ctx)
}

// rateLimitKey buckets requests per caller-supplied request ID, standing in
// for the authenticated principal a real deployment would key on.
func rateLimitKey(req *envelope.Request) string {
	return req.ID
}
