// Package middleware holds the echo middleware of the admin API.
package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultHold    = time.Minute
	defaultSkew    = 10 * time.Minute
	storeTimeout   = 2 * time.Second
	maxReplayBytes = 1 << 20
)

// Idempotency replays the stored response of a mutating request that is
// sent again with the same request id, so a retried run or settlement
// does not touch the databases twice. 5xx responses are not kept and the
// request id can be retried.
type Idempotency struct {
	store replayStore
	ttl   time.Duration
	hold  time.Duration
	skew  time.Duration
	log   *zap.Logger
	now   func() time.Time
}

type Option func(*Idempotency)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(i *Idempotency) { i.now = now } }

// WithHold sets how long a running request keeps its claim.
func WithHold(d time.Duration) Option { return func(i *Idempotency) { i.hold = d } }

// WithSkew sets the accepted distance between Ax-Request-At and server time.
func WithSkew(d time.Duration) Option { return func(i *Idempotency) { i.skew = d } }

func NewIdempotency(rdb *redis.Client, ttl time.Duration, log *zap.Logger, opts ...Option) *Idempotency {
	if log == nil {
		log = zap.NewNop()
	}
	i := &Idempotency{
		store: replayStore{rdb: rdb},
		ttl:   ttl,
		hold:  defaultHold,
		skew:  defaultSkew,
		log:   log,
		now:   time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

func (i *Idempotency) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !mutating(req.Method) {
				return next(c)
			}

			meta, err := readMeta(req.Header, i.now().UTC(), i.skew)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}

			var body []byte
			if req.Body != nil {
				if body, err = io.ReadAll(req.Body); err != nil {
					return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
				}
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			bodySum := hex.EncodeToString(sum[:])

			key := replayKey(meta.Operator, req.Method, c.Path(), meta.ID)
			log := i.log.With(zap.String("request_id", meta.ID), zap.String("operator", meta.Operator),
				zap.String("route", c.Path()))

			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			owned, err := i.store.claim(ctx, key, bodySum, meta.Operator, i.hold)
			if err != nil {
				cancel()
				log.Error("replay store unavailable", zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "idempotency store unavailable"})
			}
			if !owned {
				defer cancel()
				return i.replay(ctx, c, key, bodySum, log)
			}
			cancel()

			tee := &teeWriter{ResponseWriter: c.Response().Writer}
			c.Response().Writer = tee
			if err := next(c); err != nil {
				c.Error(err)
			}
			i.settle(key, c.Response().Status, tee, log)
			return nil
		}
	}
}

// replay answers a request whose key is already claimed.
func (i *Idempotency) replay(ctx context.Context, c echo.Context, key, bodySum string, log *zap.Logger) error {
	rec, err := i.store.load(ctx, key)
	if err != nil {
		log.Error("replay record unreadable", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "idempotency store unavailable"})
	}
	switch {
	case rec.State == "":
		// expired between claim and load
		return c.JSON(http.StatusConflict, map[string]string{"error": "request expired, retry"})
	case rec.BodySum != bodySum:
		return c.JSON(http.StatusConflict, map[string]string{"error": HeaderRequestID + " reused with a different body"})
	case rec.State == stateRunning:
		return c.JSON(http.StatusConflict, map[string]string{"error": "request is still running"})
	}
	log.Info("replaying stored response", zap.Int("code", rec.Code))
	c.Response().Header().Set(HeaderReplayed, "true")
	return c.Blob(rec.Code, echo.MIMEApplicationJSONCharsetUTF8, rec.Body)
}

// settle keeps the response for replay, or frees the claim on a server error.
func (i *Idempotency) settle(key string, code int, tee *teeWriter, log *zap.Logger) {
	// request ctx may already be done
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var err error
	switch {
	case code >= http.StatusInternalServerError:
		err = i.store.release(ctx, key)
	case tee.overflow:
		log.Warn("response too large to replay", zap.Int("limit", maxReplayBytes))
		err = i.store.release(ctx, key)
	default:
		err = i.store.finish(ctx, key, code, tee.buf.Bytes(), i.ttl)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("replay record not updated", zap.Error(err))
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// teeWriter copies the response body while it is written.
type teeWriter struct {
	http.ResponseWriter
	buf      bytes.Buffer
	overflow bool
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.buf.Len()+len(b) > maxReplayBytes {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}
