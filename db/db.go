package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rqlite/gorqlite"
)

func New(conn *gorqlite.Connection) *Queries {
	return &Queries{
		conn: conn,
		now:  time.Now,
	}
}

type Queries struct {
	conn *gorqlite.Connection
	now  func() time.Time
}

type Record struct {
	Key           string
	Value         string
	LastUpdatedAt time.Time
}

func (q *Queries) KVPut(ctx context.Context, key, value string) (err error) {
	stmt := gorqlite.ParameterizedStatement{
		Query: `insert into kv (key, value, last_updated_at)
values (?, ?, ?)
on conflict(key) do update
set
    value = excluded.value,
    last_updated_at = excluded.last_updated_at
`,
		Arguments: []any{key, value, q.now().UTC()},
	}
	if _, err = q.conn.WriteOneParameterizedContext(ctx, stmt); err != nil {
		return fmt.Errorf("db: put %q failed: %w", key, err)
	}
	return nil
}

func (q *Queries) KVGet(ctx context.Context, key string) (r Record, ok bool, err error) {
	stmt := gorqlite.ParameterizedStatement{
		Query:     `select key, value, last_updated_at from kv where key = ?`,
		Arguments: []any{key},
	}
	result, err := q.conn.QueryOneParameterizedContext(ctx, stmt)
	if err != nil {
		return Record{}, false, fmt.Errorf("db: get %q failed: %w", key, err)
	}
	if !result.Next() {
		return Record{}, false, nil
	}
	if err = result.Scan(&r.Key, &r.Value, &r.LastUpdatedAt); err != nil {
		return Record{}, false, fmt.Errorf("db: get %q failed to scan: %w", key, err)
	}
	return r, true, nil
}

func (q *Queries) KVDelete(ctx context.Context, key string) (err error) {
	stmt := gorqlite.ParameterizedStatement{
		Query:     `delete from kv where key = ?`,
		Arguments: []any{key},
	}
	if _, err = q.conn.WriteOneParameterizedContext(ctx, stmt); err != nil {
		return fmt.Errorf("db: delete %q failed: %w", key, err)
	}
	return nil
}
