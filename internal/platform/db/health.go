package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Health reports database connectivity plus basic pool stats. Used by the
// /health endpoint.
type Health struct {
	OK           bool          `json:"ok"`
	Latency      time.Duration `json:"latency_ns"`
	TotalConns   int32         `json:"total_conns"`
	IdleConns    int32         `json:"idle_conns"`
	AcquireCount int64         `json:"acquire_count"`
	Error        string        `json:"error,omitempty"`
}

// CheckHealth pings the database with a short deadline and collects pool stats.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) Health {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := pool.Ping(ctx)
	h := Health{
		OK:      err == nil,
		Latency: time.Since(start),
	}
	if err != nil {
		h.Error = err.Error()
	}

	stats := pool.Stat()
	h.TotalConns = stats.TotalConns()
	h.IdleConns = stats.IdleConns()
	h.AcquireCount = stats.AcquireCount()
	return h
}
