// Package device provides the device registry and persistence for
// netwatch-core.
//
// A device is a network endpoint identified by its IP address. The router
// runs one netwatch rule per device; this package owns the local copy of
// that inventory together with the observed reachability of each device
// and the append-only log of status changes.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                         Device Registry                          │
//	│                                                                  │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌──────────────┐  │
//	│  │     Registry     │   │   Repository     │   │  Validation  │  │
//	│  │  (registry.go)   │──▶│ (repository.go)  │   │(validation.go│  │
//	│  │ • CRUD + hooks   │   │ • devices table  │   │ • IP, names  │  │
//	│  │ • watch defaults │   │ • ApplyStatus tx │   │ • watch range│  │
//	│  └──────────────────┘   └──────────────────┘   └──────────────┘  │
//	│                                                                  │
//	│  ┌──────────────────┐   ┌──────────────────┐                     │
//	│  │ HistoryRepository│   │SettingsRepository│                     │
//	│  │  (history.go)    │   │  (settings.go)   │                     │
//	│  │ • status_history │   │ • system_config  │                     │
//	│  └──────────────────┘   └──────────────────┘                     │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Device: a monitored endpoint and its watch rule parameters
//   - Status: up, down or unknown
//   - StatusHistoryEntry: one row of the insert-only change log
//   - SystemConfig: the singleton router credentials and polling defaults
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	settings := device.NewSQLiteSettingsRepository(db.DB)
//	registry := device.NewRegistry(repo, settings)
//	registry.SetLogger(log)
//	registry.AddHook(syncHook) // pushes each write to the router
//
//	dev := &device.Device{Name: "Core switch", IP: "10.0.0.2"}
//	if err := registry.CreateDevice(ctx, dev); err != nil {
//	    return err
//	}
//
// Status fields are written only through Repository.ApplyStatus, which
// updates the device row and appends history in a single transaction.
//
// # Thread Safety
//
// The Registry is safe for concurrent use. The SQLite repositories rely on
// database/sql for concurrency; the connection pool is limited to a single
// writer.
package device
