package annotationdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE frame(
			id INTEGER PRIMARY KEY,
			uuid TEXT NOT NULL,
			name TEXT NOT NULL,
			time INT NOT NULL,
			width INT NOT NULL,
			height INT NOT NULL,
			num_regions INT NOT NULL
		);
		CREATE UNIQUE INDEX idx_frame_uuid ON frame (uuid);

		CREATE TABLE annotation(
			id INTEGER PRIMARY KEY,
			frame_id INT NOT NULL,
			cluster_id INT NOT NULL,
			box TEXT,
			classification_type TEXT NOT NULL,
			classname TEXT NOT NULL,
			classifier TEXT NOT NULL,
			source TEXT NOT NULL
		);
		CREATE INDEX idx_annotation_frame_id ON annotation (frame_id);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		ALTER TABLE annotation ADD COLUMN instance TEXT NOT NULL DEFAULT '';
		ALTER TABLE annotation ADD COLUMN hits INT NOT NULL DEFAULT 0;
		CREATE INDEX idx_annotation_classname ON annotation (classname);
	`))

	return migs
}
