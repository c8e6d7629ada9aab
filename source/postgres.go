// Reader-only access to archived record lines in a Postgres/Timescale database.
//
// Sites that archive their record stream into a database can replay from it directly instead of
// exporting to files first.  The interface is read-only; ingestion into the database is somebody
// else's pipeline.  Raw lines are stored verbatim in a table with (source, data_kind, time, line)
// columns, so the query is a straight window scan and the result feeds the normal ingest path.

package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

const pgRecordTable = "replay_records"

type PGSource struct {
	// The connection is not thread-safe; fetches from concurrent load tasks serialize on the lock.
	conn *pgx.Conn
	lock sync.Mutex
}

func OpenPGSource(databaseURI string) (*PGSource, error) {
	conn, err := pgx.Connect(context.Background(), databaseURI)
	if err != nil {
		return nil, fmt.Errorf("Unable to connect to database: %w", err)
	}
	return &PGSource{conn: conn}, nil
}

func (ps *PGSource) Close(ctx context.Context) error {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	return ps.conn.Close(ctx)
}

func (ps *PGSource) query(ctx context.Context, q string, args ...any) (pgx.Rows, error) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	return ps.conn.Query(ctx, q, args...)
}

func (ps *PGSource) Fetch(
	ctx context.Context,
	sourceID, dataKind string,
	start, end float64,
) ([]byte, error) {
	rows, err := ps.query(
		ctx,
		`SELECT line FROM `+pgRecordTable+`
		   WHERE source = $1 AND data_kind = $2 AND time >= $3 AND time < $4
		   ORDER BY time`,
		sourceID, dataKind, start, end,
	)
	if err != nil {
		return nil, &TransportError{Op: "archive query", Reason: "database query failed", Err: err}
	}
	lines, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &TransportError{Op: "archive query", Reason: "database read failed", Err: err}
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

// ListSources enumerates the distinct sources present in the archive.

func (ps *PGSource) ListSources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := ps.query(
		ctx, `SELECT DISTINCT source FROM `+pgRecordTable+` ORDER BY source`)
	if err != nil {
		return nil, &TransportError{Op: "archive sources", Reason: "database query failed", Err: err}
	}
	uids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &TransportError{Op: "archive sources", Reason: "database read failed", Err: err}
	}
	sources := make([]SourceInfo, 0, len(uids))
	for _, uid := range uids {
		sources = append(sources, SourceInfo{UID: uid, Name: uid})
	}
	return sources, nil
}
