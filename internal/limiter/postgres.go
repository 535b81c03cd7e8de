package limiter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// PG is a PostgreSQL-backed fixed-window limiter shared by all server replicas.
type PG struct {
	pool   pgxQuerier
	window time.Duration
	limit  int
	now    func() time.Time
}

type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter allowing limit hits per window.
func NewPG(q pgxQuerier, limit int, window time.Duration) *PG {
	return &PG{pool: q, window: window, limit: limit, now: time.Now}
}

// Allow records a hit for key and reports whether it is still within the window budget.
func (l *PG) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	const q = `
INSERT INTO request_limiter (key_hash, hits, window_start)
VALUES ($1, 1, now())
ON CONFLICT (key_hash) DO UPDATE
SET
  hits = CASE WHEN now() - request_limiter.window_start > $2::interval THEN 1 ELSE request_limiter.hits + 1 END,
  window_start = CASE WHEN now() - request_limiter.window_start > $2::interval THEN now() ELSE request_limiter.window_start END
RETURNING hits, window_start`
	var (
		hits  int
		start time.Time
	)
	if err := l.pool.QueryRow(ctx, q, HashKey(key), l.window).Scan(&hits, &start); err != nil {
		return false, 0, err
	}
	if hits > l.limit {
		retry := start.Add(l.window).Sub(l.now())
		if retry < 0 {
			retry = 0
		}
		return false, retry, nil
	}
	return true, 0, nil
}
