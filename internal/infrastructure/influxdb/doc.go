// Package influxdb provides InfluxDB connectivity for netwatch-core.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, reachability metric writing, and health monitoring.
//
// # Purpose
//
// Each status poll writes:
//   - one device_status point per transition or first observation
//   - one poll_cycle point summarising the poll
//
// The SQLite status history stays the source of truth for uptime
// reports. InfluxDB is an optional mirror for dashboards.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "netwatch",
//	    Bucket:  "reachability",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteDeviceStatus(id, "10.0.0.2", "up", time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via
// SetOnError. Connection and health check errors are returned directly.
package influxdb
