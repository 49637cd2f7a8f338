package ports

import "time"

// Source of the current time. Deadlines are always computed from it.
type Clock interface {
	Now() time.Time
}
