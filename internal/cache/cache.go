package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is the read-through cache used for slow-changing store documents
// (bot settings today). A miss returns hit=false with no error; callers
// fall back to the store and Set the result.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Key builds a namespaced cache key so livedesk entries never collide
// with other tenants of the same Redis.
func Key(parts ...string) string {
	return "livedesk:" + strings.Join(parts, ":")
}
