package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcffuta/elib-api/pkg/middleware/requestid"
	"github.com/rcffuta/elib-api/pkg/response"
)

const responseMetaKey = "response_meta"

// WithResponseMeta attaches a response.Meta to each request. Handlers add to it
// through SetMeta and read it back with Meta before rendering.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		meta := response.Meta{}
		if id := requestid.Value(c); id != "" {
			meta["request_id"] = id
		}
		c.Set(responseMetaKey, meta)
		c.Next()
		if _, ok := meta["processing_time_ms"]; !ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
}

// SetMeta stores key on the request's response metadata.
func SetMeta(c *gin.Context, key string, value interface{}) {
	Meta(c)[key] = value
}

// SetCacheHit records whether the payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// Meta returns the request's metadata, creating it when WithResponseMeta is not installed.
func Meta(c *gin.Context) response.Meta {
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(response.Meta); ok {
			return meta
		}
	}
	meta := response.Meta{}
	c.Set(responseMetaKey, meta)
	return meta
}
