package mikrotik

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// Category is a coarse, operator-facing error class.
type Category string

// Category constants.
const (
	CategoryTimeout           Category = "timeout"
	CategoryAuthentication    Category = "authentication"
	CategoryConnectionRefused Category = "connection_refused"
	CategoryUnclassified      Category = "unclassified"
)

// Classification is the result of Classify.
type Classification struct {
	Category Category
	Message  string
}

// Substrings matched against error text when typed checks do not apply.
// RouterOS wording changes between releases; these are advisory.
var (
	timeoutMarkers = []string{"i/o timeout", "timed out", "deadline exceeded"}
	authMarkers    = []string{"invalid user name or password", "cannot log in", "authentication", "login failure"}
	refusedMarkers = []string{"connection refused", "econnrefused"}
)

// Classify maps a channel error onto a Category with an actionable message.
// Unmatched errors are Unclassified and keep the full error text.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}

	text := err.Error()
	lower := strings.ToLower(text)

	switch {
	case isTimeout(err):
		return timeoutClassification
	case containsAny(lower, authMarkers):
		return Classification{
			Category: CategoryAuthentication,
			Message:  "router rejected the credentials; check the API username and password",
		}
	case errors.Is(err, syscall.ECONNREFUSED) || containsAny(lower, refusedMarkers):
		return Classification{
			Category: CategoryConnectionRefused,
			Message:  "router refused the connection; check that the API service is enabled and the port is correct",
		}
	case containsAny(lower, timeoutMarkers):
		return timeoutClassification
	default:
		return Classification{Category: CategoryUnclassified, Message: text}
	}
}

var timeoutClassification = Classification{
	Category: CategoryTimeout,
	Message:  "router did not respond in time; check the address and that the API service is reachable",
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
