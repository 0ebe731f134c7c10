// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC. All persisted timestamps go
// through this so database rows compare cleanly regardless of server zone.
func UTCNow() time.Time {
	return time.Now().UTC()
}
