package config

import (
	"context"
	"fmt"

	"github.com/rustyeddy/kelly/journal"
	"github.com/rustyeddy/kelly/journal/postgres"
)

// OpenJournal opens the configured journal backend. The caller closes it.
func OpenJournal(ctx context.Context, c JournalConfig) (journal.Journal, error) {
	switch c.Type {
	case "", JournalNone:
		return journal.Nop{}, nil
	case JournalCSV:
		j, err := journal.NewCSV(c.TradesFile, c.EquityFile)
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, nil
	case JournalSQLite:
		j, err := journal.NewSQLite(c.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		return j, nil
	case JournalPostgres:
		pool, err := postgres.NewPool(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pgJournal{Journal: postgres.NewJournal(pool), pool: pool}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", c.Type)
	}
}

// pgJournal releases the pool it was opened with.
type pgJournal struct {
	*postgres.Journal
	pool *postgres.Pool
}

func (j pgJournal) Close() error {
	err := j.Journal.Close()
	j.pool.Close()
	return err
}
