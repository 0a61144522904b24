// Package bootstrap builds the backend collaborator and its supporting
// connections for the server and the command line tools.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/backend/platform"
	"github.com/brayobiz/campus-hub-sub000/internal/backend/stub"
	"github.com/brayobiz/campus-hub-sub000/internal/cache"
	"github.com/brayobiz/campus-hub-sub000/internal/config"
	"github.com/brayobiz/campus-hub-sub000/internal/database"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/brayobiz/campus-hub-sub000/internal/seed"
	"github.com/brayobiz/campus-hub-sub000/internal/store"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var bootLog = observability.NewComponentLogger("bootstrap")

// Options control runtime initialization behavior.
type Options struct {
	// SeedBuiltIns loads the built-in campus catalogue once the schema is
	// in place.
	SeedBuiltIns bool
	// SkipRedis leaves Redis out even when REDIS_URL is set.
	SkipRedis bool
}

// Runtime is everything a process needs to talk to the backend.
type Runtime struct {
	Provider backend.Provider
	// Platform is nil when the stub backend is served.
	Platform *platform.Platform
	DB       *gorm.DB
	Redis    *redis.Client
	// StorageDir is served at /storage when uploads stay on local disk.
	StorageDir string
}

// Degraded reports whether the stub backend is in use.
func (r *Runtime) Degraded() bool { return r.Platform == nil }

// Close releases the provider and the connections it was built on.
func (r *Runtime) Close() {
	if r.Provider != nil {
		_ = r.Provider.Close()
	}
	closeDB(r.DB)
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
}

// InitRuntime connects Redis and, when BACKEND_URL and BACKEND_KEY are set,
// the database-backed platform. Otherwise the read-only stub is returned.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{}
	if !opts.SkipRedis {
		// May be nil when Redis is unreachable.
		rt.Redis = cache.InitRedis(cfg.RedisURL)
	}

	if !cfg.BackendConfigured() {
		bootLog.Warn(ctx, "BACKEND_URL or BACKEND_KEY is not set, serving the read-only stub backend", nil)
		rt.Provider = stub.NewProvider()
		return rt, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt.DB = db

	storage, storageDir, err := openStorage(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	mailer, err := openMailer(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var broker platform.Broker = platform.NewMemoryBroker()
	var sessions store.KV
	if rt.Redis != nil {
		broker = platform.NewRedisBroker(rt.Redis)
		sessions = store.NewRedisKV(rt.Redis, 0)
	}

	p, err := platform.New(platform.Options{
		DB:                  db,
		Broker:              broker,
		SigningKey:          cfg.BackendKey,
		Sessions:            sessions,
		Storage:             storage,
		Mailer:              mailer,
		RequireConfirmation: cfg.RequireEmailConfirmation,
		ConfirmURL:          cfg.PublicBaseURL,
		Reconnect:           cfg.Reconnect(),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Provider, rt.Platform, rt.StorageDir = p, p, storageDir

	if err := database.ApplySchema(ctx, db, cfg, p.Migrate); err != nil {
		rt.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if opts.SeedBuiltIns {
		if _, err := seed.NewSeeder(p.ClientFor("bootstrap"), seed.Options{CampusesOnly: true}).Run(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to seed built-in campuses: %w", err)
		}
	}

	return rt, nil
}

func openStorage(cfg *config.Config) (backend.Storage, string, error) {
	if cfg.StorageDriver == "s3" {
		s, err := platform.NewS3Storage(cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	}
	s, err := platform.NewLocalStorage(cfg.StorageDir, cfg.StoragePublicURL)
	if err != nil {
		return nil, "", err
	}
	return s, s.Dir(), nil
}

func openMailer(cfg *config.Config) (platform.Mailer, error) {
	if cfg.MailDriver == "ses" {
		return platform.NewSESMailer(cfg.S3Region, cfg.MailSender)
	}
	return platform.LogMailer{}, nil
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
