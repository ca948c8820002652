// Package dolt implements store.Store against an embedded or server-mode
// Dolt database (a version-controlled, MySQL-wire-compatible relational
// engine), following the two connection modes the teacher's own Dolt
// backend supports: embedded via github.com/dolthub/driver (no server
// required) and server mode via github.com/go-sql-driver/mysql (for
// multi-writer federation). The graph database proper is out of scope
// (spec §1); this package only speaks the transactional operations and
// uniqueness constraints spec §6 requires of it.
package dolt

import "time"

// Config configures how a Store connects to its backing Dolt database.
type Config struct {
	// Path is the embedded Dolt database directory. Ignored when
	// ServerMode is true.
	Path string

	// ServerMode, when true, dials a running dolt sql-server (or any
	// MySQL-wire-compatible server) instead of opening an embedded
	// database.
	ServerMode bool

	// DSN is the go-sql-driver/mysql data source name used in server
	// mode. Ignored when ServerMode is false.
	DSN string

	// Database is the database name opened inside the embedded Dolt
	// directory (default "latticegraph"). Ignored when ServerMode is
	// true: server mode connects to whatever database DSN names.
	Database string

	// MaxOpenConns bounds the shared connection pool (spec §5 "Shared
	// resource policy").
	MaxOpenConns int

	// RequestTimeout is not read by Open or by any Store method: store
	// calls are bounded only by the deadline of the context the caller
	// passes in.
	RequestTimeout time.Duration
}

func (c Config) database() string {
	if c.Database != "" {
		return c.Database
	}
	return "latticegraph"
}
