package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staff_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staff_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	storeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staff_store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"entity", "op", "result"},
	)
)

// Metrics records count and latency of every request by route pattern.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperrors.HTTPStatus(err)
			var ferr *fiber.Error
			if errors.As(err, &ferr) {
				status = ferr.Code
			}
		}
		route := c.Route().Path
		httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// StoreObserver counts store round trips per entity and operation.
type StoreObserver struct{}

func (StoreObserver) ObserveStoreOp(entity, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOperations.WithLabelValues(entity, op, result).Inc()
}
