package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var QueryTimeoutDuration = time.Second * 5

// Querier is the subset of pgxpool.Pool the repositories use.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Storage struct {
	Logs *LogsRepository
}

func NewStorage(q Querier) Storage {
	return Storage{Logs: NewLogsRepository(q)}
}
