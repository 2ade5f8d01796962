// Package migration applies versioned SQL migrations and tracks them in a
// schema_migrations table.
//
// Migration files follow the naming convention {version}_{description}.sql
// (for example "001_initial_schema.sql") and are read from an fs.FS, usually
// an embedded directory. Each migration runs inside its own transaction.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewExecutor(db))
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
