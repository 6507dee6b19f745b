package connectivity

import (
	"context"
	"database/sql"
	"time"
)

// Watch reloads the routes whenever the database changes, detected by
// polling PRAGMA data_version every interval. It performs an initial
// Reload and blocks until ctx is cancelled.
//
//	go router.Watch(ctx, db, time.Second)
func (r *Router) Watch(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := r.Reload(ctx, db); err != nil {
		r.logger.Error("connectivity: initial reload", "error", err)
	}
	var last int64
	if err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&last); err != nil {
		r.logger.Warn("connectivity: data_version", "error", err)
	}
	r.logger.Info("connectivity: watching routes", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("connectivity: watcher stopped")
			return
		case <-ticker.C:
			var ver int64
			if err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&ver); err != nil {
				r.logger.Warn("connectivity: data_version poll failed", "error", err)
				continue
			}
			if ver == last {
				continue
			}
			r.logger.Info("connectivity: routes changed", "old_version", last, "new_version", ver)
			if err := r.Reload(ctx, db); err != nil {
				r.logger.Error("connectivity: reload", "error", err)
			}
			last = ver
		}
	}
}
