// Package database provides the SQLite connection for rfbridge.
//
// The database holds the canonical state of every device path
// (device_states) and an append-only change log (state_history). Schema
// changes live in the migrations package and are applied at startup.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS()); err != nil {
//	    log.Fatal(err)
//	}
package database
