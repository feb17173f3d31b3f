package middleware

import (
	"bytes"           // response body capture
	"context"         // detached context for the cache write
	"crypto/sha1"     // short fixed-size cache keys
	"encoding/binary" // payload framing
	"encoding/json"   // headers inside the payload
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"  // Echo middleware types
	"github.com/redis/go-redis/v9" // cache storage

	"github.com/iliyamo/venue-reservation/internal/config" // cache settings
)

// captureWriter tees the response body while it is sent to the client.
// Capture stops once limit bytes were seen; the response is then not cached.
type captureWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code // remembered so only 200s are cached
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflow {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			// Too big to cache; drop what was buffered.
			cw.overflow = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b) // the client always gets the bytes
}

// cacheKey hashes method, route, path parameters and query so
// /lugar/a/estadisticas and /lugar/b/estadisticas never collide.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	tail := strings.Join([]string{r.Method, r.URL.Path, r.URL.Query().Encode()}, ":")
	sum := sha1.Sum([]byte(tail)) // keeps long query strings out of the key
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))   // status
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr))) // header length
	copy(out[8:], hdr)                                     // header JSON
	copy(out[8+len(hdr):], body)                           // body
	return out, nil
}

// decodePayload reverses encodePayload.  Any malformed entry reports false
// and the request falls through to the handler.
func decodePayload(bs []byte) (int, http.Header, []byte, bool) {
	if len(bs) < 8 { // shorter than the fixed prefix
		return 0, nil, nil, false
	}
	status := int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if 8+hlen > len(bs) { // truncated header
		return 0, nil, nil, false
	}
	hdr := make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, hdr, bs[8+hlen:], true
}

// NewRedisCache serves repeated requests from Redis for cfg.TTL.  Only 200
// responses of the configured methods are stored.  Without Redis the
// middleware does nothing.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil || cfg.TTL <= 0 {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Methods outside CACHE_METHODS are never cached.
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg, c)

			// Hit: replay the stored status, headers and body.
			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue // recomputed by net/http
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}

			// Miss: run the handler while teeing its output.
			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.overflow {
				return nil // errors and oversized bodies are not stored
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache") // set fresh on every hit
			if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
				// The request context may already be done once the body is sent.
				_ = rdb.SetEx(context.WithoutCancel(ctx), key, payload, cfg.TTL).Err()
			}
			return nil
		}
	}
}
