//go:build !cgo_sqlite

package main

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

func initDB(dataSource string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dataSource)
	if err != nil {
		return nil, err
	}
	// One connection keeps a :memory: database alive for the whole build.
	db.SetMaxOpenConns(1)
	return db, nil
}
