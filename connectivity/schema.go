package connectivity

import (
	"database/sql"

	"github.com/hazyhaar/adfriend/dbopen"
)

// Schema defines the routes table.
//
// Strategies:
//   - "local": the handler registered with RegisterLocal.
//   - "http":  POST to endpoint through the HTTP transport factory.
//   - "noop":  succeed with an empty response (service disabled).
//
// config holds per-route JSON: timeout_ms, content_type.
const Schema = `
CREATE TABLE IF NOT EXISTS routes (
    service_name TEXT PRIMARY KEY,
    strategy     TEXT NOT NULL CHECK(strategy IN ('local', 'http', 'noop')),
    endpoint     TEXT,
    config       TEXT DEFAULT '{}',
    updated_at   INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE TRIGGER IF NOT EXISTS trg_routes_updated_at
AFTER UPDATE ON routes
FOR EACH ROW
BEGIN
    UPDATE routes SET updated_at = strftime('%s', 'now') WHERE service_name = NEW.service_name;
END;
`

// OpenDB opens the routes database at path and applies Schema.
// The caller must blank-import the SQLite driver.
func OpenDB(path string) (*sql.DB, error) {
	return dbopen.Open(path, dbopen.WithBusyTimeout(5000), dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
}

// Init creates the routes table if it doesn't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
