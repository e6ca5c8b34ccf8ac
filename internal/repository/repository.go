package repository

import (
	"database/sql"
	"time"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories bind to it so the invoice aggregator can run the same
// queries inside a transaction.
type DBTX interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// dateLayout is the storage format for DATE-like columns. ISO dates also
// compare correctly as text, which the range queries rely on.
const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}
