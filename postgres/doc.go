// Package postgres implements the fortify store interfaces on
// PostgreSQL via sqlx.
//
// Open connects and pings; EnsureSchema creates the tables and indexes
// idempotently, so small deployments can skip a migration tool.  Each
// store maps its rows through unexported row structs with db tags,
// keeping the domain types free of persistence concerns.
package postgres
