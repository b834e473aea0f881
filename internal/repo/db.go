package repo

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Bootstrap creates the module's own tables. The wider hospital schema is
// owned by the booking system; only the doctor roster is read here.
func Bootstrap(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS doctors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			specialization TEXT NOT NULL,
			start_time TEXT,
			end_time TEXT,
			room TEXT,
			fee TEXT
		)
	`
	_, err := db.Exec(schema)
	return err
}
