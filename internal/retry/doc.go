// Package retry wraps fallible remote operations with bounded retry
// and capped exponential backoff.
//
// The wrapper is a standalone function parameterized by Policy, free of
// any service lifecycle, so call sites stay unit-testable. Errors that
// signal an auth or permission problem are never retried: repeating
// them cannot succeed and would delay the session-expiry handling that
// the session package performs on the propagated error.
package retry
