// Package bootstrap wires the process-wide dependencies shared by the API
// server and the feedctl command.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"campusfeed/internal/cache"
	"campusfeed/internal/config"
	"campusfeed/internal/database"
	"campusfeed/internal/events"
	"campusfeed/internal/featureflags"
	"campusfeed/internal/middleware"
	"campusfeed/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	Seed bool
}

// InitRuntime connects to the database and Redis and optionally loads the
// demo seed. The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if opts.Seed {
		if _, err := seed.NewSeeder(db, seed.DefaultOptions).Run(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, rdb, nil
}

// NewPublisher picks the domain event sink. RabbitMQ is used when AMQP_URL is
// set and the domain_events flag is on; a broker that cannot be reached
// degrades to dropping events.
func NewPublisher(cfg *config.Config, flags *featureflags.Manager) events.Publisher {
	if cfg.AMQPURL == "" || !flags.On(featureflags.DomainEvents) {
		return events.NoopPublisher{}
	}
	pub, err := events.NewRabbitMQPublisher(cfg.AMQPURL)
	if err != nil {
		middleware.Logger.Warn("RabbitMQ unavailable, domain events disabled", slog.String("error", err.Error()))
		return events.NoopPublisher{}
	}
	middleware.Logger.Info("Domain events publishing to RabbitMQ", slog.String("exchange", events.ExchangeName))
	return pub
}
