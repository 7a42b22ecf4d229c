// Package wellness provides the per-resource services of the app:
// tasks, mood entries, chat, settings and notifications.
//
// Every service composes the same resilience pieces the same way:
// the connectivity monitor gates whether a remote call is attempted at
// all, the retry layer bounds the attempt, and the session guard
// classifies failures before any generic handling. Reads served while
// unreachable fall back to the cached snapshot; writes fail fast with
// ErrOffline instead of waiting for a timeout. Successful loads replace
// the cached snapshot atomically, and realtime change events trigger a
// debounced reload.
package wellness
