package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Check is a named readiness probe for a backing service (redis, object
// storage, message broker).
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// RunChecks pings every check and returns a status per name plus the overall
// result.
func RunChecks(ctx context.Context, checks []Check) (map[string]string, bool) {
	results := make(map[string]string, len(checks))
	healthy := true
	for _, chk := range checks {
		if err := chk.Ping(ctx); err != nil {
			results[chk.Name] = err.Error()
			healthy = false
			continue
		}
		results[chk.Name] = "ok"
	}
	return results, healthy
}

// HealthHandler returns a readiness handler that pings the database and every
// additional check.
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		all := append([]Check{{Name: "database", Ping: pool.Ping}}, checks...)
		results, healthy := RunChecks(ctx, all)
		stats := GetPoolStats(pool)
		if !healthy {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"checks": results,
				"pool":   stats,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"checks": results,
			"pool":   stats,
		})
	}
}
