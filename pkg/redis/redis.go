package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/recetasapp/recetas-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// Options holds Redis connection settings.
type Options struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Init initializes the Redis connection
func Init(opts Options) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": opts.Host,
		"port": opts.Port,
		"db":   opts.DB,
	})

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client = nil
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": opts.Host,
			"port": opts.Port,
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return nil
}

// GetClient returns the Redis client instance, or nil when Redis is not
// configured.
func GetClient() *redis.Client {
	return client
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		logger.Info("Closing Redis connection", nil)
		return client.Close()
	}
	return nil
}

// CountRequest increments the counter for key and returns the number of
// hits in the current window. The window starts on the first hit.
func CountRequest(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}
