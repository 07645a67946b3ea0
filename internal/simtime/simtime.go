// Package simtime implements the simulator's virtual clock: a 64-bit
// tick count in a process-wide resolution, set once before any [Time]
// value is created. It has nothing to do with wall-clock time.
package simtime

import "fmt"

// Unit identifies the tick resolution. Matches ns-3's Time::Unit enum.
type Unit int

const (
	Femtosecond Unit = iota
	Picosecond
	Nanosecond
	Microsecond
	Millisecond
	Second
	Year // not a tick resolution; only used for TimeMax-style arithmetic
)

// ticksPerSecond maps a Unit to the number of ticks in one second, used
// only to validate/describe the resolution; the kernel itself never
// cares about "seconds", only raw ticks.
var ticksPerSecond = map[Unit]int64{
	Femtosecond: 1_000_000_000_000_000,
	Picosecond:  1_000_000_000_000,
	Nanosecond:  1_000_000_000,
	Microsecond: 1_000_000,
	Millisecond: 1_000,
	Second:      1,
}

// Max is the saturating ceiling for [Time] arithmetic, matching the
// spec's "arithmetic saturates below TimeMax" invariant.
const Max Time = 1<<63 - 1

// resolution is the process-wide tick unit. It is a package-level
// singleton by specification: §9 Open Question 4 in DESIGN.md records
// why this isn't a DESIGN mistake — the spec requires "resolution is
// set once before any time is created", mirroring ns-3's
// Time::SetResolution.
var (
	resolution       = Nanosecond
	resolutionLocked = false
)

// SetResolution sets the process-wide tick unit. Must be called before
// any [Time] value is created; calling it afterwards is a programming
// error and panics, matching the kernel's fatal-on-misuse model (§7).
func SetResolution(u Unit) {
	if resolutionLocked {
		panic("simtime: SetResolution called after a Time value was created")
	}
	if _, ok := ticksPerSecond[u]; !ok {
		panic(fmt.Sprintf("simtime: invalid resolution unit %d", u))
	}
	resolution = u
}

// Resolution returns the current process-wide tick unit. Reading it
// locks the resolution, same as creating a Time value.
func Resolution() Unit {
	resolutionLocked = true
	return resolution
}

// Time is a signed count of ticks in the process resolution. Two Times
// compare by integer compare; Now() inside a running simulator never
// decreases.
type Time int64

// FromTicks constructs a Time directly from a raw tick count, locking
// the resolution for the remainder of the process.
func FromTicks(ticks int64) Time {
	resolutionLocked = true
	return Time(ticks)
}

// Zero is the start-of-simulation time.
const Zero Time = 0

// Add returns t+d, saturating at [Max] and never going negative from a
// non-negative base (overflow wraps toward Max rather than into the
// sign bit).
func (t Time) Add(d Time) Time {
	if d > 0 && t > Max-d {
		return Max
	}
	if d < 0 && t+d < 0 {
		// Would go negative; the kernel never schedules negative
		// delays (§4.1 failure model), so this only happens via
		// direct Time arithmetic misuse. Clamp at zero rather than
		// wrapping through a negative virtual time.
		return 0
	}
	return t + d
}

// Sub returns t-u as a Time delta (not saturated; may be negative).
func (t Time) Sub(u Time) Time {
	return t - u
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool { return t < u }

// After reports whether t is strictly later than u.
func (t Time) After(u Time) bool { return t > u }

// IsZero reports whether t is the zero (start-of-simulation) time.
func (t Time) IsZero() bool { return t == 0 }

// String renders the tick count with its resolution's abbreviation,
// e.g. "1500ns".
func (t Time) String() string {
	return fmt.Sprintf("%d%s", int64(t), unitSuffix(resolution))
}

func unitSuffix(u Unit) string {
	switch u {
	case Femtosecond:
		return "fs"
	case Picosecond:
		return "ps"
	case Nanosecond:
		return "ns"
	case Microsecond:
		return "us"
	case Millisecond:
		return "ms"
	case Second:
		return "s"
	default:
		return "?"
	}
}
