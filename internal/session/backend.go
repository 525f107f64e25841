package session

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/db"
	"github.com/alexedwards/scs/postgresstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/jmoiron/sqlx"
)

const (
	BackendSQL    = "sql"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type BackendConfig struct {
	Kind          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// OpenBackend returns the scs store for cfg.Kind and a close func for
// whatever it opened. The sql backend reuses conn and its sessions table.
func OpenBackend(ctx context.Context, cfg BackendConfig, conn *sqlx.DB) (scs.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Kind {
	case "", BackendSQL:
		if conn == nil {
			return nil, nil, fmt.Errorf("session backend %q needs a database connection", BackendSQL)
		}
		if conn.DriverName() == db.DriverPostgres {
			st := postgresstore.New(conn.DB)
			return st, func() error { st.StopCleanup(); return nil }, nil
		}
		st := sqlite3store.New(conn.DB)
		return st, func() error { st.StopCleanup(); return nil }, nil
	case BackendMemory:
		return memstore.New(), noop, nil
	case BackendRedis:
		rdb, err := DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(rdb), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Kind)
	}
}
