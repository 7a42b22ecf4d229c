// Package streak computes consecutive-day streak metrics from
// timestamped entries.
//
// The computation is pure: no clock reads, no I/O. Callers pass "now"
// explicitly, which makes the single time-dependent branch (whether the
// most recent entry day is today or yesterday) deterministic and
// testable with a fixed clock.
package streak
