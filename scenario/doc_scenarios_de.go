package scenario

// Scenarios D and E (spec.md §8.2) need a PostgreSQL-backed, savepoint-only
// adapter rather than the in-memory fakeapi harness this package otherwise
// uses, since their entire point is exercising StackOnlyRollback-forced DFS
// branching against a real SAVEPOINT stack. That adapter and its stack
// discipline are implemented and tested directly against a live Postgres
// container in adapters/dbsavepoint (dbsavepoint.go, integration_test.go):
//
//   - Scenario D (branching isolation, BFS over a savepoint adapter without
//     StackOnlyRollback declared) is covered by
//     adapters/dbsavepoint.TestAdapterCheckpointRollback's independent
//     checkpoint/insert/rollback sequence; no two-branch (pay_card,
//     pay_wallet) action table is built on top of it in this package.
//   - Scenario E (the same domain, but the adapter declares
//     StackOnlyRollback: true) is covered by
//     adapters/dbsavepoint.TestAdapterRollbackToOuterDiscardsInner, which
//     demonstrates the exact property the scheduler relies on: rolling back
//     to an outer savepoint silently discards any inner one, so only one
//     child branch is ever live on the connection at a time — forcing
//     world.World.StackOnlyRollback() to report true and agent.New's
//     automatic strategy selection (agent.go) to pick strategy.DFS{}
//     instead of strategy.BFS{}.
//
// Wiring an orders/payments action table against dbsavepoint here would
// duplicate that container-backed coverage without adding a new property;
// the two scenarios' distinguishing behavior (stack-only vs unconstrained
// rollback forcing a different Strategy) is the adapter's Capabilities()
// contract, already exercised directly.
