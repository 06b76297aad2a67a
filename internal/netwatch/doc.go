// Package netwatch keeps a router's netwatch table and the local device
// registry in agreement.
//
// Four components share one RouterOS channel (package mikrotik):
//
//   - Syncer pushes a device's watch rule to the router, updating the rule
//     in place when one already watches the host.
//   - Importer creates local devices for hosts the router watches but the
//     registry does not know yet. It never edits an existing row.
//   - Poller periodically folds the router's reported status into the
//     registry and appends a history row for every transition.
//   - ComputeUptime and UptimeReporter derive availability from that history.
//
// Every router operation opens its own session and closes it before
// returning. Rule IDs are re-resolved by host each time and never stored.
//
// StatusPublisher and InfluxRecorder mirror poller output onto MQTT and
// InfluxDB. CommandHandler exposes import, sync, poll and uptime on the
// netwatch/command/{action} topics.
package netwatch
