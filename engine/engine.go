package engine

import (
	"database/sql"
	"net/url"
	"strconv"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// BusyTimeoutMillis is how long a connection opened by OpenFile waits on a
// locked database before failing with SQLITE_BUSY.
const BusyTimeoutMillis = 5000

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./archive.db". For in-memory
// databases, pass ":memory:".
func Open(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

// OpenFile opens the database file at path with WAL journaling and a busy
// timeout so a reader and the single builder can share it.
func OpenFile(path string) (*sql.DB, error) {
	return Open(FileDSN(path))
}

// FileDSN returns the DSN used by OpenFile.
func FileDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout("+strconv.Itoa(BusyTimeoutMillis)+")")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}
