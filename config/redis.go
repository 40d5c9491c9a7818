package config

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisClient is shared by the store notifier (pub/sub), the escalation
// stream consumers and the settings cache.
var RedisClient *redis.Client

// InitRedis connects from REDIS_URL (redis:// / rediss:// form) or
// REDIS_ADDR (host:port, with optional REDIS_PASSWORD and REDIS_DB).
func InitRedis() error {
	val := os.Getenv("REDIS_URL")
	if val == "" {
		val = os.Getenv("REDIS_ADDR")
	}
	if val == "" {
		return errors.New("REDIS_URL or REDIS_ADDR environment variable is not set")
	}

	if strings.HasPrefix(val, "redis://") || strings.HasPrefix(val, "rediss://") {
		opt, err := redis.ParseURL(val)
		if err != nil {
			return err
		}
		RedisClient = redis.NewClient(opt)
	} else {
		opt := &redis.Options{Addr: val, Password: os.Getenv("REDIS_PASSWORD")}
		if v := os.Getenv("REDIS_DB"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.New("REDIS_DB must be an integer")
			}
			opt.DB = n
		}
		RedisClient = redis.NewClient(opt)
	}

	_, err := RedisClient.Ping(context.Background()).Result()
	return err
}
