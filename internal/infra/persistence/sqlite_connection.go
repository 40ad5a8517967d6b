package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spounge-ai/blitzfind/internal/infra/config"
	_ "modernc.org/sqlite"
)

var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
}

// SQLitePath strips the URL forms accepted in config ("sqlite:///./x.db",
// "sqlite://x.db", "file:x.db") down to the database path.
func SQLitePath(url string) string {
	path := url
	for _, prefix := range []string{"sqlite:///", "sqlite://", "file:"} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			break
		}
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// SQLiteDSN builds a modernc.org/sqlite DSN with the store pragmas applied to every connection.
func SQLiteDSN(url string) string {
	params := make([]string, 0, len(sqlitePragmas))
	for _, p := range sqlitePragmas {
		params = append(params, "_pragma="+p)
	}
	return SQLitePath(url) + "?" + strings.Join(params, "&")
}

// NewSQLiteDB opens a SQLite handle sized by the pool policy.
func NewSQLiteDB(ctx context.Context, persistenceConfig config.PersistenceConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", SQLiteDSN(persistenceConfig.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	pc := persistenceConfig.Pool
	db.SetMaxOpenConns(pc.MaxConns())
	db.SetMaxIdleConns(pc.Size)
	db.SetConnMaxLifetime(pc.RecycleAge)
	db.SetConnMaxIdleTime(pc.IdleTimeout)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.InfoContext(ctx, "sqlite pool ready",
		"path", SQLitePath(persistenceConfig.URL),
		"max_open_conns", pc.MaxConns(),
		"max_idle_conns", pc.Size,
		"pre_ping", pc.PrePing,
	)

	return db, nil
}
