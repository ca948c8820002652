package dolt

// schemaStatements creates the six tables spec §4.7 names, each
// carrying the uniqueness constraint spec §6 requires of the store, plus
// the schema_migrations tracking table.
// provenance_keys/provenance_events are the parallel-array encoding
// spec §6 and §9 describe for stores without a native set type with
// custom equality.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS nodes (
		id                 VARCHAR(255) PRIMARY KEY,
		type               VARCHAR(32)  NOT NULL,
		label              TEXT         NOT NULL,
		hypothetical       BOOLEAN      NOT NULL DEFAULT TRUE,
		provenance_keys    JSON         NOT NULL,
		provenance_events  JSON         NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS edges (
		source             VARCHAR(255) NOT NULL,
		target             VARCHAR(255) NOT NULL,
		type               VARCHAR(32)  NOT NULL,
		provenance_keys    JSON         NOT NULL,
		provenance_events  JSON         NOT NULL,
		PRIMARY KEY (source, target, type)
	)`,
	`CREATE TABLE IF NOT EXISTS edge_adjacency (
		source VARCHAR(255) NOT NULL,
		target VARCHAR(255) NOT NULL,
		type   VARCHAR(32)  NOT NULL,
		PRIMARY KEY (source, target, type)
	)`,
	`CREATE TABLE IF NOT EXISTS incidents (
		incident_id VARCHAR(255) PRIMARY KEY,
		created_at  DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS node_tombstones (
		incident_id         VARCHAR(255) NOT NULL,
		node_id             VARCHAR(255) NOT NULL,
		provenance_source   VARCHAR(255) NOT NULL,
		provenance_trigger  VARCHAR(255) NOT NULL,
		provenance_ts       DATETIME(6)  NOT NULL,
		unmatched           BOOLEAN      NOT NULL,
		PRIMARY KEY (incident_id, node_id)
	)`,
	`CREATE TABLE IF NOT EXISTS edge_tombstones (
		incident_id         VARCHAR(255) NOT NULL,
		source              VARCHAR(255) NOT NULL,
		target              VARCHAR(255) NOT NULL,
		type                VARCHAR(32)  NOT NULL,
		provenance_source   VARCHAR(255) NOT NULL,
		provenance_trigger  VARCHAR(255) NOT NULL,
		provenance_ts       DATETIME(6)  NOT NULL,
		PRIMARY KEY (incident_id, source, target, type)
	)`,
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		filename    VARCHAR(255) PRIMARY KEY,
		applied_at  DATETIME(6) NOT NULL
	)`,
}
