package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 3 * time.Second

// PoolStats is the database section of the health report.
type PoolStats struct {
	TotalConns    int32  `json:"total_conns"`
	IdleConns     int32  `json:"idle_conns"`
	AcquiredConns int32  `json:"acquired_conns"`
	MaxConns      int32  `json:"max_conns"`
	Healthy       bool   `json:"healthy"`
	Error         string `json:"error,omitempty"`
}

func statsFrom(s *pgxpool.Stat) *PoolStats {
	return &PoolStats{
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		MaxConns:      s.MaxConns(),
	}
}

// Check pings the pool and reports its statistics.
func Check(ctx context.Context, pool *pgxpool.Pool) *PoolStats {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err := pool.Ping(ctx)
	stats := statsFrom(pool.Stat())
	stats.Healthy = err == nil
	if err != nil {
		stats.Error = err.Error()
	}
	return stats
}
