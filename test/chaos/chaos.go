// Package chaos injects connection failures during stress runs. Settlement
// transactions must stay all-or-nothing even when their backend dies
// mid-flight; the oracles verify no half-applied state survives.
package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TerminateRandomBackend periodically kills one random backend of the
// current database, never its own. Runs until ctx or stop fires.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.Intn(3) == 0 {
				_, _ = pool.Exec(ctx, `
                    SELECT pg_terminate_backend(pid) FROM pg_stat_activity
                    WHERE datname = current_database() AND pid <> pg_backend_pid()
                    ORDER BY random() LIMIT 1
                `)
			}
		}
	}
}
