// Package cleaner retires expired rows from a relational schema without
// breaking referential integrity.
//
// A run starts from a configured root table. The GraphBuilder merges the
// relations declared in configuration with the foreign keys read from the
// catalog and walks them depth-first into a Plan. Edges that point back
// into the active path (cycles, self references) are recorded and dropped,
// so the plan is always a DAG.
//
// Each batch of root keys is selected with keyset pagination and handed to
// the Engine, which visits children before parents inside one transaction:
//
//	ENTER → RESOLVE_KEYS → VISIT_CHILDREN → ACT_ON_SELF → EXIT
//
// In dry-run mode every level is counted and the transaction is rolled
// back. In live mode child keys are selected, their subtrees processed and
// only then the level itself is deleted. Rows matched at every level are
// addressed by an explicit value list, never by a range.
//
// When archiving is enabled the Archiver buffers the full rows before they
// are deleted and writes them to a RowSink after the transaction commits.
//
// # Errors
//
//   - SchemaIntrospectionError and InvalidRelationError stop the table
//     before any data is touched.
//   - UnsupportedOperatorError is returned while compiling conditions.
//   - QueryError (kind StatementTimeout or QueryExecution) aborts and rolls
//     back the current batch only.
//
// Cycles are not errors; they are reported in Plan.Cycles and in the
// table summary.
package cleaner
