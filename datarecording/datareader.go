package datarecording

import (
	"database/sql"
	"fmt"
)

// A Reader inspects a database written by a DataRecorder.
type Reader struct {
	*sql.DB
}

// NewReader opens the database at path for reading.
func NewReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	return &Reader{DB: db}, nil
}

// ListTables returns the names of all tables, sorted.
func (r *Reader) ListTables() ([]string, error) {
	rows, err := r.Query(
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

// Count returns the number of rows in a table.
func (r *Reader) Count(tableName string) (int, error) {
	var n int

	err := r.QueryRow("SELECT COUNT(*) FROM " + tableName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", tableName, err)
	}

	return n, nil
}
