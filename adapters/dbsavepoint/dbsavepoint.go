// Package dbsavepoint implements the SQL SAVEPOINT-backed adapter (spec.md
// §4.1: "DB savepoint — real SAVEPOINT/ROLLBACK TO; stack-only"). It wraps a
// single long-lived transaction and nests one SAVEPOINT per checkpoint, so
// Rollback only ever works correctly against the most recently issued,
// still-live savepoint — the scheduler must branch in strict LIFO order
// whenever this adapter is registered (world.World.StackOnlyRollback()).
//
// Grounded on the pgxpool.Pool usage shape in db/state_store.go, adapted from
// ad-hoc pooled queries to a single pinned *pgx.Tx with nested savepoints.
package dbsavepoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"venomqa.dev/venomqa/rollback"
)

// Adapter owns one transaction for the lifetime of an exploration run.
// Checkpoint issues a nested SAVEPOINT; Rollback issues ROLLBACK TO
// SAVEPOINT, which Postgres itself invalidates all descendant savepoints for
// — the adapter never needs to track or manually unwind a savepoint stack.
type Adapter struct {
	pool      *pgxpool.Pool
	tx        pgx.Tx
	tables    []string // tables whose row counts/hashes feed Observe
	savepoint int       // monotonic savepoint name counter
}

// Open begins the run-long transaction. tables lists the tables Observe
// summarizes; it should cover every table an action under test can mutate.
func Open(ctx context.Context, pool *pgxpool.Pool, tables []string) (*Adapter, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("dbsavepoint: begin transaction: %w", err)
	}
	return &Adapter{pool: pool, tx: tx, tables: append([]string(nil), tables...)}, nil
}

// Close rolls back the run-long transaction, discarding every change the
// exploration ever made. Safe to call even if some savepoint rollback
// already failed.
func (a *Adapter) Close(ctx context.Context) error {
	return a.tx.Rollback(ctx)
}

type savepointToken struct {
	name string
}

// Checkpoint issues `SAVEPOINT <name>` and returns a token naming it.
func (a *Adapter) Checkpoint(ctx context.Context) (rollback.Token, error) {
	a.savepoint++
	name := fmt.Sprintf("venomqa_sp_%d", a.savepoint)
	if _, err := a.tx.Exec(ctx, "SAVEPOINT "+pgx.Identifier{name}.Sanitize()); err != nil {
		return nil, fmt.Errorf("dbsavepoint: SAVEPOINT %s: %w", name, err)
	}
	return rollback.OpaqueToken{Value: savepointToken{name: name}}, nil
}

// Rollback issues `ROLLBACK TO SAVEPOINT <name>`. Rolling back to an outer
// savepoint is legal and makes Postgres discard every savepoint taken after
// it, so those inner tokens can no longer be rolled back to; any error
// Postgres reports (e.g. for such a discarded savepoint) is surfaced
// unchanged.
func (a *Adapter) Rollback(ctx context.Context, token rollback.Token) error {
	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("dbsavepoint: rollback token of wrong type %T", token)
	}
	sp, ok := tok.Value.(savepointToken)
	if !ok {
		return fmt.Errorf("dbsavepoint: rollback token holds wrong value type %T", tok.Value)
	}
	if _, err := a.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+pgx.Identifier{sp.name}.Sanitize()); err != nil {
		return fmt.Errorf("dbsavepoint: ROLLBACK TO SAVEPOINT %s: %w", sp.name, err)
	}
	return nil
}

// Observe returns, per configured table, its row count and a content hash
// computed from every row's text representation — bounded and deterministic,
// never the raw rows.
func (a *Adapter) Observe(ctx context.Context) (map[string]interface{}, error) {
	tables := append([]string(nil), a.tables...)
	sort.Strings(tables)

	out := make(map[string]interface{}, len(tables))
	for _, table := range tables {
		ident := pgx.Identifier{table}.Sanitize()
		var count int64
		if err := a.tx.QueryRow(ctx, "SELECT count(*) FROM "+ident).Scan(&count); err != nil {
			return nil, fmt.Errorf("dbsavepoint: count %s: %w", table, err)
		}

		rows, err := a.tx.Query(ctx, "SELECT md5(t::text) FROM "+ident+" t ORDER BY 1")
		if err != nil {
			return nil, fmt.Errorf("dbsavepoint: hash %s: %w", table, err)
		}
		h := sha256.New()
		for rows.Next() {
			var rowHash string
			if err := rows.Scan(&rowHash); err != nil {
				rows.Close()
				return nil, fmt.Errorf("dbsavepoint: scan %s: %w", table, err)
			}
			h.Write([]byte(rowHash))
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("dbsavepoint: iterate %s: %w", table, err)
		}

		out[table] = map[string]interface{}{
			"count": count,
			"hash":  hex.EncodeToString(h.Sum(nil)),
		}
	}
	return out, nil
}

// Capabilities reports stack-only rollback: Postgres SAVEPOINT semantics
// only support LIFO rollback order.
func (a *Adapter) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: true, CheckpointCost: rollback.CostModerate}
}
