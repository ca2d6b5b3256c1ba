package store

import (
	"context"
	"fmt"

	"github.com/a-h/chatrelay/db"
	"github.com/rqlite/gorqlite"
)

// Rqlite stores values in the kv table of an rqlite database.
type Rqlite struct {
	conn    *gorqlite.Connection
	queries *db.Queries
}

var _ Store = (*Rqlite)(nil)

// NewRqlite connects to the database at rqliteURL and migrates it.
func NewRqlite(rqliteURL string) (*Rqlite, error) {
	u, err := db.ParseRqliteURL(rqliteURL)
	if err != nil {
		return nil, err
	}
	conn, err := gorqlite.Open(u.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("store: failed to open rqlite connection: %w", err)
	}
	if err = db.Migrate(u); err != nil {
		conn.Close()
		return nil, err
	}
	return &Rqlite{conn: conn, queries: db.New(conn)}, nil
}

func (r *Rqlite) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	record, ok, err := r.queries.KVGet(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return []byte(record.Value), true, nil
}

func (r *Rqlite) Set(ctx context.Context, key string, value []byte) error {
	return r.queries.KVPut(ctx, key, string(value))
}

func (r *Rqlite) Delete(ctx context.Context, key string) error {
	return r.queries.KVDelete(ctx, key)
}

func (r *Rqlite) Close() error {
	r.conn.Close()
	return nil
}
