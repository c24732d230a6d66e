// Package core defines the shared language of the sqlgate system.
//
// This package contains:
//   - Request and response entities (Query, ResultSet, ColumnType)
//   - The store capability consumed by the gateway (Store, PreparedStatement, BoundStatement)
//   - Configuration types (StoreConfig, TransactionOptions)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
