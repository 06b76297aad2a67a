package mikrotik

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// RemoteStatusUp is the netwatch status value for a reachable host.
// Every other value ("down", "unknown", empty) is treated as not up.
const RemoteStatusUp = "up"

// WatchRule is one /tool/netwatch entry as listed by the router.
type WatchRule struct {
	// ID is the router-assigned ".id". Valid only within the session that
	// listed it.
	ID string

	Host       string
	Comment    string
	Timeout    time.Duration
	Interval   time.Duration
	UpScript   string
	DownScript string

	// Status is the router's last observation, e.g. "up" or "down".
	Status   string
	Disabled bool
}

// IsUp reports whether the router currently sees the host as reachable.
func (r WatchRule) IsUp() bool {
	return r.Status == RemoteStatusUp
}

// RuleSpec is the writable part of a watch rule.
type RuleSpec struct {
	Host       string
	Comment    string
	Timeout    time.Duration
	Interval   time.Duration
	UpScript   string
	DownScript string
}

// Validate checks the fields the router requires.
func (s RuleSpec) Validate() error {
	if strings.TrimSpace(s.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidRule)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidRule)
	}
	if s.Interval < time.Second {
		return fmt.Errorf("%w: interval must be at least 1s", ErrInvalidRule)
	}
	return nil
}

// args renders s as RouterOS API attribute words.
// Scripts are always sent so clearing one on the device side works.
func (s RuleSpec) args() []string {
	return []string{
		"=host=" + s.Host,
		"=comment=" + s.Comment,
		"=timeout=" + FormatTimeout(s.Timeout),
		"=interval=" + FormatInterval(s.Interval),
		"=up-script=" + s.UpScript,
		"=down-script=" + s.DownScript,
	}
}

// FindByHost returns the first rule watching host. Addresses are compared
// in canonical form, so "2001:DB8::0:1" matches a rule on "2001:db8::1".
func FindByHost(rules []WatchRule, host string) (WatchRule, bool) {
	want := canonicalHost(host)
	for _, r := range rules {
		if canonicalHost(r.Host) == want {
			return r, true
		}
	}
	return WatchRule{}, false
}

// canonicalHost returns the canonical text of an IP address. Hostnames
// and other unparseable values are only trimmed.
func canonicalHost(host string) string {
	host = strings.TrimSpace(host)
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String()
	}
	return host
}

// ruleFromMap converts one !re sentence of /tool/netwatch/print.
// Unparseable durations are left at zero rather than failing the listing.
func ruleFromMap(m map[string]string) WatchRule {
	r := WatchRule{
		ID:         m[".id"],
		Host:       m["host"],
		Comment:    m["comment"],
		UpScript:   m["up-script"],
		DownScript: m["down-script"],
		Status:     m["status"],
		Disabled:   m["disabled"] == "true",
	}
	if v, ok := m["timeout"]; ok {
		if d, err := ParseDuration(v); err == nil {
			r.Timeout = d
		}
	}
	if v, ok := m["interval"]; ok {
		if d, err := ParseDuration(v); err == nil {
			r.Interval = d
		}
	}
	return r
}
