package export

import (
	"database/sql"
)

// schemaVersion is recorded in the metadata table of every export.
const schemaVersion = 1

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// createTables creates every table of a fresh export.
func createTables(tx *sql.Tx) error {
	for _, create := range []func(*sql.Tx) error{
		createMetadataTable,
		createModulesTable,
		createSymbolsTable,
		createMembersTable,
		createOverlaysTable,
		createArticlesTable,
	} {
		if err := create(tx); err != nil {
			return err
		}
	}
	return nil
}

func createMetadataTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}

func createModulesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE modules (
			name TEXT PRIMARY KEY,
			language TEXT,
			dependencies_json TEXT NOT NULL
		)
	`)
	return err
}

// createSymbolsTable creates the symbols table. doc_inherited is 1 when the
// documentation was taken from the symbol this one extends.
func createSymbolsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE symbols (
			stable_id TEXT PRIMARY KEY,
			module TEXT NOT NULL REFERENCES modules(name),
			kind TEXT NOT NULL,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			declaration TEXT,
			doc_card TEXT,
			doc_body TEXT,
			doc_inherited INTEGER NOT NULL DEFAULT 0,
			extends_id TEXT,
			address TEXT NOT NULL,
			availability_json TEXT
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX idx_symbols_address ON symbols(address)`)
	return err
}

func createMembersTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE members (
			owner_id TEXT NOT NULL REFERENCES symbols(stable_id),
			member_id TEXT NOT NULL REFERENCES symbols(stable_id),
			PRIMARY KEY (owner_id, member_id)
		)
	`)
	return err
}

// createOverlaysTable creates the overlays table: one row per conformance or
// feature a culture contributes to a local host. Feature rows carry the
// address of the feature as a member of the host.
func createOverlaysTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE overlays (
			host_id TEXT NOT NULL REFERENCES symbols(stable_id),
			package TEXT NOT NULL,
			culture TEXT NOT NULL,
			relation TEXT NOT NULL CHECK(relation IN ('conformance', 'feature')),
			target_id TEXT NOT NULL,
			address TEXT,
			constraints_json TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`CREATE INDEX idx_overlays_host ON overlays(host_id)`)
	return err
}

func createArticlesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE articles (
			article_id TEXT PRIMARY KEY,
			module TEXT NOT NULL REFERENCES modules(name),
			name TEXT NOT NULL,
			headline TEXT,
			body TEXT
		)
	`)
	return err
}
