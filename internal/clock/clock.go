// Package clock provides the wall-clock source used for session expiry and
// reminder windows.
package clock

import "time"

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

// Now implements Clock.
func (f Func) Now() time.Time { return f() }

// System reads the real wall clock in UTC.
var System Clock = Func(func() time.Time { return time.Now().UTC() })
