package dbsavepoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"venomqa.dev/venomqa/rollback"
)

// MockAdapter is a dependency-free stand-in for Adapter: an in-process table
// of rows, with rollback enforced to strict LIFO order. This is stricter
// than Postgres, which accepts ROLLBACK TO an outer savepoint and discards
// the inner ones. Grounded on the
// Err-injection / Called-tracking / Last*-capture shape of
// storage/s3_mock.go's MockS3Client, adapted to a stack of snapshots instead
// of a single object store.
type MockAdapter struct {
	// Tables maps table name to its rows, each row a plain string
	// representation (the mock never needs real SQL types).
	Tables map[string][]string

	// Err, if set, is returned by the next Checkpoint or Rollback call and
	// then cleared.
	Err error

	CheckpointCalled bool
	RollbackCalled   bool
	LastRollbackName string

	stack []mockSnapshot
}

type mockSnapshot struct {
	name   string
	tables map[string][]string
}

// NewMockAdapter creates an empty mock with the given table names.
func NewMockAdapter(tableNames ...string) *MockAdapter {
	tables := make(map[string][]string, len(tableNames))
	for _, name := range tableNames {
		tables[name] = nil
	}
	return &MockAdapter{Tables: tables}
}

// InsertRow appends row to table, used by test actions to simulate a write.
func (m *MockAdapter) InsertRow(table, row string) {
	m.Tables[table] = append(m.Tables[table], row)
}

// Checkpoint pushes a deep copy of Tables onto the mock's internal stack.
func (m *MockAdapter) Checkpoint(ctx context.Context) (rollback.Token, error) {
	m.CheckpointCalled = true
	if m.Err != nil {
		err := m.Err
		m.Err = nil
		return nil, err
	}

	cp := make(map[string][]string, len(m.Tables))
	for k, rows := range m.Tables {
		cp[k] = append([]string(nil), rows...)
	}
	name := fmt.Sprintf("mock_sp_%d", len(m.stack)+1)
	m.stack = append(m.stack, mockSnapshot{name: name, tables: cp})
	return rollback.OpaqueToken{Value: name}, nil
}

// Rollback requires token to name the innermost pushed snapshot and pops it;
// rolling back to anything else errors, whereas Postgres would accept
// ROLLBACK TO an outer savepoint.
func (m *MockAdapter) Rollback(ctx context.Context, token rollback.Token) error {
	m.RollbackCalled = true
	if m.Err != nil {
		err := m.Err
		m.Err = nil
		return err
	}

	tok, ok := token.(rollback.OpaqueToken)
	if !ok {
		return fmt.Errorf("dbsavepoint.MockAdapter: rollback token of wrong type %T", token)
	}
	name, ok := tok.Value.(string)
	if !ok {
		return fmt.Errorf("dbsavepoint.MockAdapter: rollback token holds wrong value type %T", tok.Value)
	}
	m.LastRollbackName = name

	if len(m.stack) == 0 || m.stack[len(m.stack)-1].name != name {
		return fmt.Errorf("dbsavepoint.MockAdapter: rollback to %q is not the innermost savepoint", name)
	}
	m.Tables = m.stack[len(m.stack)-1].tables
	m.stack = m.stack[:len(m.stack)-1]
	return nil
}

// Observe mirrors Adapter.Observe's shape against the in-process tables.
func (m *MockAdapter) Observe(ctx context.Context) (map[string]interface{}, error) {
	names := make([]string, 0, len(m.Tables))
	for name := range m.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]interface{}, len(names))
	for _, name := range names {
		rows := append([]string(nil), m.Tables[name]...)
		sort.Strings(rows)
		h := sha256.New()
		for _, row := range rows {
			h.Write([]byte(row))
		}
		out[name] = map[string]interface{}{
			"count": len(rows),
			"hash":  hex.EncodeToString(h.Sum(nil)),
		}
	}
	return out, nil
}

// Capabilities reports stack-only rollback, matching Adapter.
func (m *MockAdapter) Capabilities() rollback.Capabilities {
	return rollback.Capabilities{StackOnlyRollback: true, CheckpointCost: rollback.CostCheap}
}
