package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/temperature-monitor/internal/domain/reading"
	"github.com/oshokin/temperature-monitor/internal/service/query"
)

// Querier is the read service behind the handlers.
type Querier interface {
	Latest(ctx context.Context) (*reading.Reading, error)
	History(ctx context.Context, start, end *time.Time) ([]reading.Reading, error)
	Hourly(ctx context.Context) ([]reading.Reading, error)
	Classify(value float64) query.Classification
}

// Option configures the router.
type Option func(*routerOptions)

type routerOptions struct {
	metrics http.Handler
	now     func() time.Time
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *routerOptions) {
		o.metrics = h
	}
}

// WithClock overrides the clock reported by /health.
func WithClock(now func() time.Time) Option {
	return func(o *routerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewRouter builds the gin engine serving the query API.
func NewRouter(q Querier, opts ...Option) *gin.Engine {
	o := routerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLoggingMiddleware())

	h := NewHandler(q, o.now)

	r.GET("/health", h.Health)

	temperature := r.Group("/temperature")
	{
		temperature.GET("/latest", h.Latest)
		temperature.GET("/history", h.History)
		temperature.GET("/hourly", h.Hourly)
	}

	if o.metrics != nil {
		r.GET("/metrics", gin.WrapH(o.metrics))
	}

	return r
}
