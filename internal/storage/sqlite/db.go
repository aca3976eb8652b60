package sqlite

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS use_cases (
		id                  INTEGER PRIMARY KEY,
		name                TEXT NOT NULL,
		classification_type TEXT NOT NULL DEFAULT 'SINGLE_LABEL',
		wafer_threshold     REAL
	);

	CREATE TABLE IF NOT EXISTS defects (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		use_case_id INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_defects_use_case ON defects(use_case_id);

	CREATE TABLE IF NOT EXISTS upload_sessions (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		use_case_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS wafers (
		id   INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS file_sets (
		id                INTEGER PRIMARY KEY,
		upload_session_id INTEGER NOT NULL,
		use_case_id       INTEGER NOT NULL,
		wafer_id          INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_file_sets_use_case ON file_sets(use_case_id);
	CREATE INDEX IF NOT EXISTS idx_file_sets_wafer ON file_sets(wafer_id);

	CREATE TABLE IF NOT EXISTS files (
		id          INTEGER PRIMARY KEY,
		name        TEXT NOT NULL,
		file_set_id INTEGER NOT NULL,
		created_ts  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_file_set ON files(file_set_id);
	CREATE INDEX IF NOT EXISTS idx_files_created_ts ON files(created_ts);

	CREATE TABLE IF NOT EXISTS ml_models (
		id                   INTEGER PRIMARY KEY,
		name                 TEXT NOT NULL,
		use_case_id          INTEGER NOT NULL,
		confidence_threshold REAL
	);

	CREATE TABLE IF NOT EXISTS gt_annotations (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id   INTEGER NOT NULL,
		defect_id INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_gt_file ON gt_annotations(file_id);

	CREATE TABLE IF NOT EXISTS model_annotations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id     INTEGER NOT NULL,
		ml_model_id INTEGER NOT NULL,
		defect_id   INTEGER,
		confidence  REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ma_file_model ON model_annotations(file_id, ml_model_id);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	// Migration: add wafers.status if missing.
	var colCount int
	_ = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('wafers') WHERE name = 'status'`).Scan(&colCount)
	if colCount == 0 {
		_, _ = db.Exec(`ALTER TABLE wafers ADD COLUMN status TEXT DEFAULT ''`)
	}

	return db, nil
}
