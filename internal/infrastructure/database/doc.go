// Package database provides SQLite connectivity for Netwatch Core.
//
// This package manages:
//   - Database connection with WAL mode so the poller's writes do not block readers
//   - Embedded schema migrations (see the migrations package)
//   - Connection lifecycle and health checks
//   - Detection of UNIQUE constraint failures for callers that treat them as conflicts
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//   - The system_config table holds the router password; protect the file accordingly
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
