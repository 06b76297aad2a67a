// Package mikrotik implements the control channel to a RouterOS router's
// netwatch service.
//
// The router runs the actual liveness checks. This package lists, creates,
// updates and removes /tool/netwatch entries over the RouterOS API
// (TCP 8728) so the rest of netwatch-core can treat the router as a remote
// store of watch rules.
//
// # Architecture
//
//	┌─────────────────┐  Dialer.Open   ┌─────────────────┐  RouterOS API
//	│  netwatch-core  │───────────────►│     Session     │◄────────────► Router
//	│ (sync, poller)  │◄───────────────│  (this package) │  /tool/netwatch
//	└─────────────────┘   WatchRule    └─────────────────┘
//
// # Sessions
//
// A Session is short-lived: callers open one per operation and always close
// it, including on error paths. Rule IDs (".id", e.g. "*1A") are assigned by
// the router and may change across reboots, so they are only valid inside
// the session that listed them. Resolve a rule by host every time:
//
//	sess, err := dialer.Open(ctx, params)
//	if err != nil {
//	    return err // wraps ErrConnect
//	}
//	defer sess.Close()
//
//	rules, err := sess.ListRules(ctx)
//	if err != nil {
//	    return err // wraps ErrRemote
//	}
//	if rule, ok := mikrotik.FindByHost(rules, "10.0.0.2"); ok {
//	    err = sess.UpdateRule(ctx, rule.ID, spec)
//	}
//
// No call in this package retries. Retry policy belongs to the caller.
//
// # Durations
//
// RouterOS prints durations in its own notation ("500ms", "1m30s", "1d2h",
// "00:01:30"). ParseDuration reads all of these. Timeouts are written in
// milliseconds and intervals in seconds.
//
// # Error Classification
//
// Classify turns a channel error into a short category for operators
// (timeout, authentication, connection refused). Matching is best effort;
// anything unrecognised is reported as Unclassified with the full error text.
package mikrotik
